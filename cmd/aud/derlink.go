package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opd-ai/audmon/link"
)

var derlinkCmd = &cobra.Command{
	Use:   "derlink",
	Short: "Run a tempo-sync client on a shared beat timeline",
	RunE:  runDerlink,
}

func init() {
	flags := derlinkCmd.Flags()
	flags.Float64("tempo", 120, "initial tempo in beats per minute")
	flags.Float64("quantum", 4, "beats per bar for phase display")
	flags.Duration("refresh", 100*time.Millisecond, "display refresh interval")
}

func runDerlink(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	tempo, _ := flags.GetFloat64("tempo")
	quantum, _ := flags.GetFloat64("quantum")
	refresh, _ := flags.GetDuration("refresh")

	clock := link.NewLoopback(time.Now(), tempo)
	defer clock.Close()
	clock.SetPlaying(time.Now(), true)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case now := <-ticker.C:
			state := clock.State(now, quantum)
			fmt.Printf("\rtempo %6.2f bpm   beat %10.2f   phase %4.2f/%g   peers %d ",
				state.Tempo, state.Beats, state.Phase, quantum, state.Peers)
		}
	}
}
