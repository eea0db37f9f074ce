package display

import (
	"errors"
	"fmt"
	"image"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Waveshare 7.5" V2 HAT wiring (BCM numbering). Chip select is left
// to spidev.
const (
	pinRST  = "GPIO17"
	pinDC   = "GPIO25"
	pinBUSY = "GPIO24"
	pinPWR  = "GPIO18"
)

const (
	epd7in5V2Width  = 800
	epd7in5V2Height = 480

	// spidev won't take larger transfers by default.
	maxTxSize = 4096

	defaultBusyTimeout    = 30 * time.Second
	busyPollInterval      = 20 * time.Millisecond
	powerOnSettleInterval = 100 * time.Millisecond
)

// Controller commands.
const (
	cmdPanelSetting     = 0x00
	cmdPowerSetting     = 0x01
	cmdPowerOff         = 0x02
	cmdPowerOn          = 0x04
	cmdDeepSleep        = 0x07
	cmdOldData          = 0x10
	cmdDisplayRefresh   = 0x12
	cmdNewData          = 0x13
	cmdDualSPI          = 0x15
	cmdVCOMDataInterval = 0x50
	cmdTCONSetting      = 0x60
	cmdResolution       = 0x61
	cmdGetStatus        = 0x71

	deepSleepCheckCode = 0xA5
)

var ErrBusyTimeout = errors.New("panel busy timeout")

// Waveshare 7.5" V2 black and white panel, 800x480.
type EPD7in5V2 struct {
	conn spi.Conn
	rst  gpio.PinOut
	dc   gpio.PinOut
	busy gpio.PinIn

	port        spi.PortCloser
	asleep      bool
	busyTimeout time.Duration
}

// Opens the panel on the default SPI port.
func NewEPD7in5V2() (*EPD7in5V2, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initializing host: %w", err)
	}

	port, err := spireg.Open("")
	if err != nil {
		return nil, fmt.Errorf("opening SPI port: %w", err)
	}

	conn, err := port.Connect(4*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connecting SPI: %w", err)
	}

	out := func(name string, level gpio.Level) (gpio.PinOut, error) {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("gpio %s not found", name)
		}
		if err := p.Out(level); err != nil {
			return nil, fmt.Errorf("gpio %s: %w", name, err)
		}
		return p, nil
	}

	rst, err := out(pinRST, gpio.High)
	if err != nil {
		port.Close()
		return nil, err
	}
	dc, err := out(pinDC, gpio.Low)
	if err != nil {
		port.Close()
		return nil, err
	}

	// Only on newer HAT revisions
	if pwr := gpioreg.ByName(pinPWR); pwr != nil {
		pwr.Out(gpio.High)
	}

	busy := gpioreg.ByName(pinBUSY)
	if busy == nil {
		port.Close()
		return nil, fmt.Errorf("gpio %s not found", pinBUSY)
	}
	if err := busy.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		port.Close()
		return nil, fmt.Errorf("gpio %s: %w", pinBUSY, err)
	}

	d := newEPD7in5V2(conn, rst, dc, busy)
	d.port = port

	if err := d.Init(); err != nil {
		port.Close()
		return nil, err
	}

	return d, nil
}

func newEPD7in5V2(conn spi.Conn, rst gpio.PinOut, dc gpio.PinOut, busy gpio.PinIn) *EPD7in5V2 {
	return &EPD7in5V2{
		conn:        conn,
		rst:         rst,
		dc:          dc,
		busy:        busy,
		asleep:      true,
		busyTimeout: defaultBusyTimeout,
	}
}

func (d *EPD7in5V2) Bounds() image.Rectangle {
	return image.Rect(0, 0, epd7in5V2Width, epd7in5V2Height)
}

// Hardware reset followed by the power up sequence.
func (d *EPD7in5V2) Init() error {
	d.reset()

	steps := []struct {
		cmd  byte
		data []byte
	}{
		{cmdPowerSetting, []byte{0x07, 0x07, 0x3f, 0x3f}},
		{cmdPowerOn, nil},
	}
	for _, s := range steps {
		if err := d.command(s.cmd, s.data...); err != nil {
			return err
		}
	}

	time.Sleep(powerOnSettleInterval)
	if err := d.waitBusy(); err != nil {
		return fmt.Errorf("powering on: %w", err)
	}

	steps = []struct {
		cmd  byte
		data []byte
	}{
		{cmdPanelSetting, []byte{0x1F}},
		{cmdResolution, []byte{0x03, 0x20, 0x01, 0xE0}},
		{cmdDualSPI, []byte{0x00}},
		{cmdVCOMDataInterval, []byte{0x10, 0x07}},
		{cmdTCONSetting, []byte{0x22}},
	}
	for _, s := range steps {
		if err := d.command(s.cmd, s.data...); err != nil {
			return err
		}
	}

	d.asleep = false
	return nil
}

func (d *EPD7in5V2) Push(img image.Image) error {
	if d.asleep {
		if err := d.Init(); err != nil {
			return fmt.Errorf("waking panel: %w", err)
		}
	}

	buf := Pack(fitFrame(img, d.Bounds()))
	if err := d.command(cmdNewData, buf...); err != nil {
		return err
	}

	return d.refresh()
}

// Blanks the panel.
func (d *EPD7in5V2) Clear() error {
	if d.asleep {
		if err := d.Init(); err != nil {
			return fmt.Errorf("waking panel: %w", err)
		}
	}

	size := epd7in5V2Width * epd7in5V2Height / 8
	old := make([]byte, size)
	for i := range old {
		old[i] = 0xFF
	}
	if err := d.command(cmdOldData, old...); err != nil {
		return err
	}
	if err := d.command(cmdNewData, make([]byte, size)...); err != nil {
		return err
	}

	return d.refresh()
}

func (d *EPD7in5V2) Sleep() error {
	if d.asleep {
		return nil
	}

	if err := d.command(cmdPowerOff); err != nil {
		return err
	}
	if err := d.waitBusy(); err != nil {
		return fmt.Errorf("powering off: %w", err)
	}
	if err := d.command(cmdDeepSleep, deepSleepCheckCode); err != nil {
		return err
	}

	d.asleep = true
	return nil
}

func (d *EPD7in5V2) Close() error {
	err := d.Sleep()
	if d.port != nil {
		return errors.Join(err, d.port.Close())
	}
	return err
}

func (d *EPD7in5V2) refresh() error {
	if err := d.command(cmdDisplayRefresh); err != nil {
		return err
	}
	time.Sleep(powerOnSettleInterval)
	if err := d.waitBusy(); err != nil {
		return fmt.Errorf("refreshing: %w", err)
	}
	return nil
}

func (d *EPD7in5V2) reset() {
	d.rst.Out(gpio.High)
	time.Sleep(20 * time.Millisecond)
	d.rst.Out(gpio.Low)
	time.Sleep(2 * time.Millisecond)
	d.rst.Out(gpio.High)
	time.Sleep(20 * time.Millisecond)
}

// Sends a command byte, followed by its data (if any).
func (d *EPD7in5V2) command(cmd byte, data ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return fmt.Errorf("setting DC: %w", err)
	}
	if err := d.conn.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("sending command 0x%02X: %w", cmd, err)
	}

	if len(data) == 0 {
		return nil
	}

	if err := d.dc.Out(gpio.High); err != nil {
		return fmt.Errorf("setting DC: %w", err)
	}
	for len(data) > 0 {
		n := len(data)
		if n > maxTxSize {
			n = maxTxSize
		}
		if err := d.conn.Tx(data[:n], nil); err != nil {
			return fmt.Errorf("sending data for 0x%02X: %w", cmd, err)
		}
		data = data[n:]
	}

	return nil
}

// The BUSY line is low while the controller works.
func (d *EPD7in5V2) waitBusy() error {
	deadline := time.Now().Add(d.busyTimeout)
	for {
		if err := d.command(cmdGetStatus); err != nil {
			return err
		}
		if d.busy.Read() == gpio.High {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrBusyTimeout
		}
		time.Sleep(busyPollInterval)
	}
}
