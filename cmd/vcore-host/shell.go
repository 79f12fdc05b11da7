package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"vcore-bridge/host/client"
	"vcore-bridge/host/vr"
)

var errQuit = errors.New("quit")

// shell is the command interpreter behind the REPL.
type shell struct {
	c        *client.Client
	out      io.Writer
	interval time.Duration

	devices  []client.Device
	selected *client.Device
	chip     vr.Device

	sleep func(time.Duration)
}

func newShell(c *client.Client, out io.Writer, interval time.Duration) *shell {
	return &shell{c: c, out: out, interval: interval, sleep: time.Sleep}
}

// init detects devices and selects the first one, retrying the whole
// sequence attempts times.
func (s *shell) init(attempts int, delay time.Duration, sleep func(time.Duration)) error {
	var err error
	for i := 0; i < max(1, attempts); i++ {
		if i > 0 {
			sleep(delay)
		}
		if err = s.detect(); err != nil {
			continue
		}
		if len(s.devices) == 0 {
			err = client.ErrNoDevice
			continue
		}
		return s.selectDevice(s.devices[0])
	}
	return fmt.Errorf("initialisation failed: %w", err)
}

func (s *shell) detect() error {
	devs, err := s.c.GetDevices()
	if err != nil {
		return err
	}
	s.devices = devs
	return nil
}

func (s *shell) selectDevice(d client.Device) error {
	got, err := s.c.Select(d.Addr)
	if err != nil {
		return err
	}
	if got.Name == "" {
		got.Name = d.Name
	}
	s.selected = &got
	s.chip, _ = vr.New(got.Name, s.c)
	fmt.Fprintf(s.out, "Selected 0x%02X %s\n", got.Addr, got.Name)
	return nil
}

// run reads commands from in until EOF or quit.
func (s *shell) run(in io.Reader, prompt bool) error {
	sc := bufio.NewScanner(in)
	for {
		if prompt {
			fmt.Fprint(s.out, "> ")
		}
		if !sc.Scan() {
			return sc.Err()
		}
		err := s.exec(sc.Text())
		if errors.Is(err, errQuit) {
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
}

// exec runs one command line.
func (s *shell) exec(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(args[0]), args[1:]

	switch cmd {
	case "quit", "exit", "q":
		return errQuit
	case "help", "?":
		s.help()
		return nil
	case "scan":
		devs, err := s.c.Scan()
		if err != nil {
			return err
		}
		s.devices = devs
		s.listDevices()
		return nil
	case "devices":
		if err := s.detect(); err != nil {
			return err
		}
		s.listDevices()
		return nil
	case "select":
		if len(args) != 1 {
			return errors.New("usage: select <addr|index|name>")
		}
		d, err := s.lookup(args[0])
		if err != nil {
			return err
		}
		return s.selectDevice(d)
	case "switch":
		d, err := s.c.Switch()
		if err != nil {
			return err
		}
		s.selected = &d
		s.chip, _ = vr.New(d.Name, s.c)
		fmt.Fprintf(s.out, "Selected 0x%02X %s\n", d.Addr, d.Name)
		return nil
	case "pause":
		if err := s.c.Pause(); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "Paused")
		return nil
	case "resume":
		if err := s.c.Resume(); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "Resumed")
		return nil
	case "read":
		return s.read(args)
	case "write":
		return s.write(args)
	case "status":
		r, err := s.c.Status()
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, string(r.Raw))
		return nil
	case "measure":
		return s.measure()
	case "monitor":
		n := 10
		if len(args) == 1 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v < 1 {
				return fmt.Errorf("invalid count %q", args[0])
			}
			n = v
		}
		for i := 0; i < n; i++ {
			if i > 0 {
				s.sleep(s.interval)
			}
			if err := s.measure(); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

func (s *shell) help() {
	fmt.Fprintln(s.out, "Available commands:")
	fmt.Fprintln(s.out, "  scan                 - Rescan the bus")
	fmt.Fprintln(s.out, "  devices              - List detected devices")
	fmt.Fprintln(s.out, "  select <addr|idx|nm> - Select a device")
	fmt.Fprintln(s.out, "  switch               - Select the next device")
	fmt.Fprintln(s.out, "  read <reg>...        - Read registers")
	fmt.Fprintln(s.out, "  write <reg> <value>  - Write a register")
	fmt.Fprintln(s.out, "  pause / resume       - Stop or allow bulk transactions")
	fmt.Fprintln(s.out, "  status               - Bridge status")
	fmt.Fprintln(s.out, "  measure              - Decoded telemetry of the selected device")
	fmt.Fprintln(s.out, "  monitor [n]          - Measure n times")
	fmt.Fprintln(s.out, "  quit/exit/q          - Exit")
}

func (s *shell) listDevices() {
	if len(s.devices) == 0 {
		fmt.Fprintln(s.out, "No devices")
		return
	}
	for i, d := range s.devices {
		fmt.Fprintf(s.out, "  [%d] 0x%02X %s\n", i, d.Addr, d.Name)
	}
}

// lookup resolves a device by hex/decimal address, list index or name.
func (s *shell) lookup(arg string) (client.Device, error) {
	for _, d := range s.devices {
		if strings.EqualFold(d.Name, arg) {
			return d, nil
		}
	}
	if strings.HasPrefix(arg, "0x") || strings.HasPrefix(arg, "0X") {
		v, err := parseByte(arg)
		if err != nil {
			return client.Device{}, err
		}
		return client.Device{Addr: v}, nil
	}
	i, err := strconv.Atoi(arg)
	if err != nil {
		return client.Device{}, fmt.Errorf("unknown device %q", arg)
	}
	if i >= 0 && i < len(s.devices) {
		return s.devices[i], nil
	}
	if i > 0 && i <= 0x7F {
		return client.Device{Addr: uint8(i)}, nil
	}
	return client.Device{}, fmt.Errorf("unknown device %q", arg)
}

func (s *shell) read(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: read <reg>...")
	}
	regs := make([]byte, len(args))
	for i, a := range args {
		v, err := parseByte(a)
		if err != nil {
			return err
		}
		regs[i] = v
	}
	vals, err := s.c.ReadRegs(regs...)
	if err != nil {
		return err
	}
	for i, v := range vals {
		fmt.Fprintf(s.out, "  0x%02X = 0x%02X\n", regs[i], v)
	}
	return nil
}

func (s *shell) write(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: write <reg> <value>")
	}
	reg, err := parseByte(args[0])
	if err != nil {
		return err
	}
	val, err := parseByte(args[1])
	if err != nil {
		return err
	}
	if err := s.c.WriteRegister(reg, val); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "  0x%02X <- 0x%02X\n", reg, val)
	return nil
}

func (s *shell) measure() error {
	if s.selected == nil {
		return client.ErrNoDevice
	}
	if s.chip == nil {
		return fmt.Errorf("%w: %s", vr.ErrUnsupported, s.selected.Name)
	}
	m, err := s.chip.Measure()
	if err != nil {
		return err
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, string(b))
	return nil
}

// parseByte accepts 0x-prefixed hex or decimal.
func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte %q", s)
	}
	return byte(v), nil
}
