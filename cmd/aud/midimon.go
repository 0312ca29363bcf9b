package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opd-ai/audmon/midi"
	"github.com/opd-ai/audmon/script"
	"github.com/opd-ai/audmon/session"
)

var midimonCmd = &cobra.Command{
	Use:   "midimon",
	Short: "Monitor MIDI input, optionally filtered by a Lua script",
	RunE:  runMidimon,
}

func init() {
	midimonCmd.Flags().String("device", "", "MIDI input to open, default is the first discovered")
	midimonCmd.Flags().String("replay", "", "replay hex messages from this file instead of hardware")
	midimonCmd.Flags().Duration("interval", 50*time.Millisecond, "replay message interval")
}

func runMidimon(cmd *cobra.Command, args []string) error {
	backend, err := midimonBackend(cmd)
	if err != nil {
		return err
	}

	device, _ := cmd.Flags().GetString("device")
	s := session.New(session.Config{
		MidiBackend: backend,
		Device:      device,
		Script:      resolveScript(viper.GetString("script")),
		TimeoutMS:   viper.GetUint32("timeout-ms"),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go printEvents(ctx, s)
	return s.Run(ctx)
}

// midimonBackend builds the input backend. Without --replay a short
// demo sequence is used; the native hardware host is an external
// collaborator wired in by the packaging layer.
func midimonBackend(cmd *cobra.Command) (midi.Backend, error) {
	interval, _ := cmd.Flags().GetDuration("interval")
	path, _ := cmd.Flags().GetString("replay")

	if path == "" {
		return &midi.ReplayBackend{
			Name:     "demo-replay",
			Interval: interval,
			Messages: [][]byte{
				{0x90, 0x3c, 0x64},
				{0xF8},
				{0x80, 0x3c, 0x00},
				{0x90, 0x40, 0x64},
				{0x80, 0x40, 0x00},
			},
		}, nil
	}

	messages, err := readReplayFile(path)
	if err != nil {
		return nil, err
	}
	return &midi.ReplayBackend{Name: path, Interval: interval, Messages: messages}, nil
}

// readReplayFile parses one hex-encoded MIDI message per line, for
// example "903c7f". Blank lines and #-comments are skipped.
func readReplayFile(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var messages [][]byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		msg, err := hex.DecodeString(strings.ReplaceAll(line, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("replay file %s: %w", path, err)
		}
		messages = append(messages, msg)
	}
	return messages, scanner.Err()
}

// printEvents renders session events as monitor lines until ctx ends.
func printEvents(ctx context.Context, s *session.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.Events():
			switch event.Kind {
			case script.EventMidiDisplay:
				fmt.Printf("%s  % X\n", event.Device, event.Bytes)
			case script.EventAudioDisplay:
				fmt.Printf("%s  %d frames x %d channels\n",
					event.Device, event.Frame.FrameCount, len(event.Frame.Channels))
			case script.EventAlert:
				fmt.Printf("[alert] %s\n", event.Message)
			case script.EventLog:
				fmt.Printf("[script] %s\n", event.Message)
			case script.EventLoadError, script.EventRuntimeError:
				fmt.Fprintf(os.Stderr, "[script error] %s\n", event.Message)
			}
		}
	}
}
