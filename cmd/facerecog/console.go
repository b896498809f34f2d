package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// commandKind is a console command.
type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdInterval
	cmdURL
	cmdType
	cmdStatus
	cmdHelp
	cmdQuit
)

// command is a parsed console line.
type command struct {
	kind     commandKind
	interval time.Duration
	arg      string
}

var errEmptyLine = errors.New("empty line")

const consoleHelp = `commands:
  start              start capturing and sending frames
  stop               stop capturing; queued frames are still sent
  interval <sec>     set the sample interval (seconds or a duration like 500ms)
  url <base>         set the service base URL
  type <path>        set the endpoint path
  status             show session state
  quit               stop and exit`

// parseCommand parses one console line.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, errEmptyLine
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	needArg := func() (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("%s takes exactly one argument", name)
		}
		return args[0], nil
	}

	switch name {
	case "start":
		return command{kind: cmdStart}, nil
	case "stop":
		return command{kind: cmdStop}, nil
	case "status":
		return command{kind: cmdStatus}, nil
	case "help", "?":
		return command{kind: cmdHelp}, nil
	case "quit", "exit", "q":
		return command{kind: cmdQuit}, nil
	case "interval":
		raw, err := needArg()
		if err != nil {
			return command{}, err
		}
		d, err := parseInterval(raw)
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdInterval, interval: d}, nil
	case "url":
		raw, err := needArg()
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdURL, arg: raw}, nil
	case "type":
		raw, err := needArg()
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdType, arg: raw}, nil
	default:
		return command{}, fmt.Errorf("unknown command %q (try help)", name)
	}
}

// parseInterval accepts plain seconds ("1.5") or a Go duration ("750ms").
func parseInterval(raw string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("interval must be positive")
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q", raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	return d, nil
}
