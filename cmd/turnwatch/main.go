// Command turnwatch sits in a room as one participant: it waits for the
// readiness quorum, escalates the opponents' lapsed turns, and fires the
// settlement once the match is over.
package main

import (
	"context"
	"errors"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/client"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/logging"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/settle"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/watch"
)

type options struct {
	server    string
	room      string
	wallet    string
	token     string
	join      bool
	accept    bool
	poll      time.Duration
	maxMisses int
	roles     string
	debug     bool
}

func main() {
	var o options
	flag.StringVar(&o.server, "server", "http://localhost:8080", "coordination server base URL")
	flag.StringVar(&o.room, "room", "", "room code")
	flag.StringVar(&o.wallet, "wallet", "", "wallet to act as")
	flag.StringVar(&o.token, "token", os.Getenv("SESSION_TOKEN"), "session token (default $SESSION_TOKEN)")
	flag.BoolVar(&o.join, "join", false, "join the room before watching")
	flag.BoolVar(&o.accept, "accept", false, "accept the rules for ranked and private rooms")
	flag.DurationVar(&o.poll, "poll", watch.DefaultPollInterval, "poll interval")
	flag.IntVar(&o.maxMisses, "max-misses", 3, "lapses before a forfeit is requested")
	flag.StringVar(&o.roles, "roles", "", "role table for winner resolution, e.g. home=w1,away=w2")
	flag.BoolVar(&o.debug, "debug", os.Getenv("DEBUG") != "", "development logging")
	flag.Parse()

	if o.room == "" || o.wallet == "" {
		flag.Usage()
		os.Exit(2)
	}
	log, err := logging.New(o.debug)
	if err != nil {
		stdlog.Fatalf("logger: %v", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("turnwatch", zap.Error(err))
	}
}

func run(ctx context.Context, o options, log *zap.Logger) error {
	c := client.New(o.server, o.wallet, client.WithToken(o.token))
	log = log.With(logging.Room(o.room), logging.Wallet(o.wallet))

	if o.join {
		if _, err := c.JoinRoom(ctx, o.room); err != nil {
			return err
		}
		log.Info("joined")
	}
	if o.accept {
		acc, err := c.AcceptRules(ctx, o.room)
		if err != nil {
			return err
		}
		log.Info("rules accepted", zap.Int("accepted", acc.Acceptances.AcceptedCount),
			zap.Int("required", acc.Acceptances.RequiredCount))
	}

	if _, err := watch.WaitForQuorum(ctx, c, o.room, o.poll, nil, log); err != nil {
		return err
	}
	log.Info("quorum reached, watching turns")

	d := watch.NewDetector(c, o.room, o.wallet, watch.Config{PollInterval: o.poll, MaxMisses: o.maxMisses},
		watch.WithLogger(log),
		watch.WithSink(func(e watch.Event) {
			log.Info("escalated", zap.String("lapsed", e.Lapsed), zap.String("kind", string(e.State)),
				zap.Int("misses", e.Misses))
		}))
	if err := d.Run(ctx); err != nil {
		return err
	}
	return settleFinished(ctx, c, o, log)
}

func settleFinished(ctx context.Context, c *client.Client, o options, log *zap.Logger) error {
	resp, err := c.GetSession(ctx, o.room)
	if err != nil {
		return err
	}
	s := resp.Session
	log.Info("match over", zap.String("status", string(s.Status)), zap.String("winner", s.Winner),
		zap.String("reason", string(s.WinReason)))

	trigger, err := settle.NewTrigger(c, 0, log)
	if err != nil {
		return err
	}
	res, fired, err := trigger.OnTerminal(ctx, s, "", parseRoles(o.roles))
	switch {
	case errors.Is(err, settle.ErrDraw):
		refund, err := c.RefundDraw(ctx, o.room)
		if err != nil {
			return err
		}
		log.Info("draw refunded", zap.String("signature", refund.Signature), zap.Bool("alreadyRefunded", refund.AlreadyRefunded))
		return nil
	case err != nil:
		if models.CodeOf(err) == models.CodeInstructionMissing {
			log.Error("settlement is not available for this room; nothing was paid")
		}
		return err
	case fired:
		log.Info("settlement done", zap.String("signature", res.Signature),
			zap.Bool("alreadySettled", res.AlreadySettled), zap.Bool("alreadyClosed", res.AlreadyClosed))
	}
	return nil
}

// parseRoles reads "role=wallet,role=wallet"
func parseRoles(s string) settle.Roles {
	roles := settle.Roles{}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && k != "" {
			roles[strings.ToLower(k)] = v
		}
	}
	return roles
}
