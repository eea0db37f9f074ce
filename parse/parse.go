package parse

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spkg/bom"

	"tidbyt.dev/stopboard/storage"
)

// These are the files we load for static dumps. Only stop_times.txt
// is required.
var knownFiles = []string{
	"agency.txt",
	"stops.txt",
	"routes.txt",
	"trips.txt",
	"stop_times.txt",
}

func isKnownFile(name string) bool {
	for _, known := range knownFiles {
		if name == known {
			return true
		}
	}
	return false
}

// Raw content of a timetable, as found on disk.
type Source struct {
	Path  string
	Hash  string
	Files map[string][]byte
}

// Reads a timetable from path, which can be a GTFS zip archive, a
// directory holding GTFS text files, or a single file in the
// stop_times.txt format.
func ReadSource(path string) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading timetable: %w", err)
	}

	var files map[string][]byte
	switch {
	case info.IsDir():
		files, err = readDir(path)
	case strings.EqualFold(filepath.Ext(path), ".zip"):
		var buf []byte
		buf, err = os.ReadFile(path)
		if err == nil {
			files, err = unzip(buf)
		}
	default:
		var buf []byte
		buf, err = os.ReadFile(path)
		files = map[string][]byte{"stop_times.txt": buf}
	}
	if err != nil {
		return nil, fmt.Errorf("reading timetable %s: %w", path, err)
	}

	return NewSource(path, files), nil
}

// Builds a Source from file contents keyed by GTFS file name.
func NewSource(path string, files map[string][]byte) *Source {
	names := []string{}
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		fmt.Fprintf(h, "%s:%d:", name, len(files[name]))
		h.Write(files[name])
	}

	return &Source{
		Path:  path,
		Hash:  fmt.Sprintf("%x", h.Sum(nil)),
		Files: files,
	}
}

func readDir(dir string) (map[string][]byte, error) {
	files := map[string][]byte{}
	for _, name := range knownFiles {
		buf, err := os.ReadFile(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		files[name] = buf
	}
	return files, nil
}

func unzip(buf []byte) (map[string][]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("unzipping: %w", err)
	}

	files := map[string][]byte{}
	for _, f := range r.File {
		// There should not be any subdirectories. But, some
		// agencies don't care.
		if f.FileInfo().IsDir() {
			continue
		}
		path := strings.Split(f.Name, "/")
		fName := path[len(path)-1]

		if !isKnownFile(fName) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Name, err)
		}

		files[fName] = content
	}

	return files, nil
}

// Parses a zipped GTFS feed.
func ParseZip(writer storage.FeedWriter, buf []byte) (*storage.FeedMetadata, error) {
	files, err := unzip(buf)
	if err != nil {
		return nil, err
	}
	return ParseStatic(writer, files)
}

func ParseSource(writer storage.FeedWriter, src *Source) (*storage.FeedMetadata, error) {
	metadata, err := ParseStatic(writer, src.Files)
	if err != nil {
		return nil, err
	}
	metadata.Hash = src.Hash
	metadata.Path = src.Path
	return metadata, nil
}

func ParseStatic(writer storage.FeedWriter, files map[string][]byte) (*storage.FeedMetadata, error) {
	file := func(name string) io.Reader {
		if buf, found := files[name]; found {
			return bytes.NewReader(buf)
		}
		return nil
	}

	if file("stop_times.txt") == nil {
		return nil, fmt.Errorf("missing stop_times.txt")
	}
	if file("routes.txt") != nil && file("trips.txt") == nil {
		return nil, fmt.Errorf("routes.txt requires trips.txt")
	}

	// LazyCSVReader required (at least) to survive sloppy use of
	// quotes. The BOM reader strips unicode BOMs if present.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})

	// Parse agency.txt. Extract timezone and set of agency IDs in
	// the process.
	var agency map[string]bool
	timezone := ""
	if r := file("agency.txt"); r != nil {
		var err error
		agency, timezone, err = ParseAgency(writer, r)
		if err != nil {
			return nil, fmt.Errorf("parsing agency.txt: %w", err)
		}
	}

	// Parse routes.txt. Extract route IDs in the process.
	var routes map[string]bool
	if r := file("routes.txt"); r != nil {
		var err error
		routes, err = ParseRoutes(writer, r, agency)
		if err != nil {
			return nil, fmt.Errorf("parsing routes.txt: %w", err)
		}
	}

	// Parse trips.txt. Needed for headsigns and directions.
	var trips map[string]*TripInfo
	if r := file("trips.txt"); r != nil {
		var err error
		trips, err = ParseTrips(writer, r, routes)
		if err != nil {
			return nil, fmt.Errorf("parsing trips.txt: %w", err)
		}
	}

	var stops map[string]bool
	if r := file("stops.txt"); r != nil {
		var err error
		stops, err = ParseStops(writer, r)
		if err != nil {
			return nil, fmt.Errorf("parsing stops.txt: %w", err)
		}
	}

	// Parse stop_times.txt.
	err := writer.BeginStopTimes()
	if err != nil {
		return nil, fmt.Errorf("beginning stop_times: %w", err)
	}
	maxArrival, count, err := ParseStopTimes(writer, file("stop_times.txt"), trips, stops)
	if err != nil {
		return nil, fmt.Errorf("parsing stop_times.txt: %w", err)
	}
	err = writer.EndStopTimes()
	if err != nil {
		return nil, fmt.Errorf("ending stop_times: %w", err)
	}

	// All files parsed: close the writer.
	err = writer.Close()
	if err != nil {
		return nil, fmt.Errorf("closing feed writer: %w", err)
	}

	// And return a (partial) metadata holding some key
	// information about the feed.
	return &storage.FeedMetadata{
		Timezone:      timezone,
		MaxArrival:    maxArrival,
		StopTimeCount: count,
	}, nil
}
