package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opd-ai/audmon/audio"
	"github.com/opd-ai/audmon/session"
	"github.com/opd-ai/audmon/transport"
)

var auscopeCmd = &cobra.Command{
	Use:   "auscope",
	Short: "Dump oscilloscope data from a local device or a remote stream",
	Long: `auscope monitors an audio stream frame by frame.

By default it opens a local device. With --listen it instead reassembles
a remote stream published by a transmitter, selecting --source on the
remote end. With --transmit it additionally republishes local frames to
another receiver.`,
	RunE: runAuscope,
}

func init() {
	flags := auscopeCmd.Flags()
	flags.String("device", "synth-stereo", "local device to open")
	flags.Uint32("sample-rate", 48000, "sample rate for generated and reassembled frames")
	flags.Uint32("frame-size", 256, "frames per period for the synthetic backend")
	flags.String("listen", "", "bind address for remote mode, e.g. 127.0.0.1:7070")
	flags.String("remote", "", "remote transmitter address selections are sent to")
	flags.String("source", "", "remote source to select in remote mode")
	flags.String("transmit", "", "republish local frames to this receiver address")
	flags.String("bind", "127.0.0.1:0", "local bind for the republishing transmitter")
}

func runAuscope(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	sampleRate, _ := flags.GetUint32("sample-rate")

	cfg := session.Config{
		Script:    resolveScript(viper.GetString("script")),
		TimeoutMS: viper.GetUint32("timeout-ms"),
	}

	listen, _ := flags.GetString("listen")
	if listen != "" {
		remote, _ := flags.GetString("remote")
		rx, err := transport.NewReceiver(transport.ReceiverConfig{
			Bind:       listen,
			Target:     remote,
			SampleRate: sampleRate,
		})
		if err != nil {
			return err
		}
		if source, _ := flags.GetString("source"); source != "" {
			if err := rx.Select(source); err != nil {
				return err
			}
		}
		cfg.Receiver = rx
	} else {
		frameSize, _ := flags.GetUint32("frame-size")
		cfg.AudioBackend = audio.NewSyntheticBackend(sampleRate, frameSize)
		cfg.Device, _ = flags.GetString("device")
	}

	if target, _ := flags.GetString("transmit"); target != "" {
		bind, _ := flags.GetString("bind")
		tx, err := transport.NewTransmitter(transport.TransmitterConfig{
			Bind:   bind,
			Target: target,
			Sources: []audio.Device{
				{Name: "synth-mono", Channels: 1},
				{Name: "synth-stereo", Channels: 2},
			},
		})
		if err != nil {
			return err
		}
		cfg.Transmitter = tx
	}

	s := session.New(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go printEvents(ctx, s)
	return s.Run(ctx)
}
