package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"skillswap/internal/callclient"
	"skillswap/internal/config"
	"skillswap/internal/joinwindow"
	"skillswap/pkg/types"
)

// errWindowNotOpen means the class can be joined later
var errWindowNotOpen = errors.New("join window not open yet")

type callOptions struct {
	server    string
	token     string
	meetingID string
	index     int
	wait      bool
}

func newCallCmd(opts *rootOptions) *cobra.Command {
	co := &callOptions{}
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Join a class call as a headless participant",
		Long: `Reveals the room of one class, joins it through the relay and sends a
silent audio track. The call ends when the class time runs out or on the
first interrupt; a second interrupt aborts without reporting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, opts, co)
		},
	}
	cmd.Flags().StringVar(&co.server, "server", "http://localhost:8080", "base URL of the API")
	cmd.Flags().StringVar(&co.token, "token", os.Getenv(config.EnvPrefix+"TOKEN"), "bearer token of the participant")
	cmd.Flags().StringVar(&co.meetingID, "meeting", "", "meeting id")
	cmd.Flags().IntVar(&co.index, "index", 0, "class index within the meeting")
	cmd.Flags().BoolVar(&co.wait, "wait", false, "wait for the join window to open instead of exiting")
	return cmd
}

func runCall(cmd *cobra.Command, opts *rootOptions, co *callOptions) error {
	if co.token == "" || co.meetingID == "" {
		return errors.New("--token and --meeting are required")
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger := loadLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	client := callclient.NewAPIClient(co.server, co.token)
	if err := awaitJoinWindow(ctx, cmd, client, cfg.JoinPolicy(), co); err != nil {
		return err
	}
	reveal, err := client.RevealRoom(ctx, co.meetingID, co.index)
	if err != nil {
		return fmt.Errorf("cannot join class: %w", err)
	}
	iceServers, err := client.ICEServers(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch ICE servers: %w", err)
	}
	relayURL, err := client.RelayURL()
	if err != nil {
		return err
	}
	peers, err := callclient.NewPionPeerFactory(iceServers, logger)
	if err != nil {
		return err
	}

	index := co.index
	ctrl, err := callclient.NewController(callclient.Session{
		RoomName:   reveal.RoomName,
		MeetingID:  co.meetingID,
		ClassIndex: &index,
		Duration:   time.Duration(reveal.DurationMin) * time.Minute,
	}, callclient.Deps{
		Media:    callclient.SyntheticMediaSource{},
		Dialer:   &callclient.WSDialer{URL: relayURL, Token: co.token, Logger: logger},
		Peers:    peers,
		Reporter: client,
		OnState: func(from, to callclient.State) {
			logger.Info("call state", zap.Stringer("from", from), zap.Stringer("to", to))
		},
	}, logger)
	if err != nil {
		return err
	}

	// First interrupt ends the call normally, the second aborts it
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		interrupts := 0
		for {
			select {
			case <-signals:
				interrupts++
				if interrupts == 1 {
					ctrl.End()
				} else {
					cancel()
				}
			case <-ctrl.Done():
				return
			}
		}
	}()

	outcome, err := ctrl.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "call ended (%s): %s - %s, %ds\n", outcome.Reason,
		outcome.StartAt.Format(time.RFC3339), outcome.EndAt.Format(time.RFC3339), outcome.DurationSec)
	switch {
	case outcome.ReportErr != nil:
		fmt.Fprintf(out, "completion not recorded: %v\n", outcome.ReportErr)
	case outcome.AlreadyCompleted:
		fmt.Fprintln(out, "class was already recorded by the other participant")
	}
	return nil
}

// awaitJoinWindow checks the slot locally before asking for the room. The
// server still decides; this only avoids a pointless reveal and lets --wait
// sleep until the window opens.
func awaitJoinWindow(ctx context.Context, cmd *cobra.Command, client *callclient.APIClient, policy joinwindow.Policy, co *callOptions) error {
	meeting, err := client.GetMeeting(ctx, co.meetingID)
	if err != nil {
		return fmt.Errorf("cannot load meeting: %w", err)
	}
	if co.index < 0 || co.index >= len(meeting.Classes) {
		return fmt.Errorf("meeting %s has no class %d", co.meetingID, co.index)
	}
	slot := meeting.Classes[co.index]

	wait, err := adviseJoin(policy, slot, time.Now())
	if !errors.Is(err, errWindowNotOpen) {
		return err
	}
	if !co.wait {
		return fmt.Errorf("%w: opens at %s. %s", err,
			policy.Opens(slot.DateTime).Local().Format(time.RFC1123), policy.Message())
	}

	fmt.Fprintf(cmd.OutOrStdout(), "waiting %s for the join window to open\n", wait.Round(time.Second))
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// adviseJoin classifies slot at now. A nil error means joinable; errWindowNotOpen
// comes with the time left until the window opens.
func adviseJoin(policy joinwindow.Policy, slot types.ClassSlot, now time.Time) (time.Duration, error) {
	state := policy.Classify(slot.DateTime, slot.Status, now)
	switch {
	case state.Joinable():
		return 0, nil
	case state == joinwindow.StateUpcoming:
		return policy.Opens(slot.DateTime).Sub(now), errWindowNotOpen
	case state.Terminal():
		return 0, fmt.Errorf("class %d is %s", slot.Index, slot.Status)
	default:
		return 0, fmt.Errorf("join window closed. %s", policy.Message())
	}
}
