package relay

import (
	"context"
	"time"

	"ghrelay/internal/activity"
	"ghrelay/internal/render"
	kit "ghrelay/internal/transport"
	logx "ghrelay/pkg/logx"
)

// DefaultBlockDelay separates consecutive blocks to the same destination.
const DefaultBlockDelay = 100 * time.Millisecond

// Deliverer sends blocks to every destination with a single attempt each.
type Deliverer struct {
	sender  kit.Sender
	dests   []kit.Destination
	delay   time.Duration
	log     logx.Logger
	metrics *Metrics
}

func NewDeliverer(sender kit.Sender, dests []kit.Destination, delay time.Duration, log logx.Logger, m *Metrics) *Deliverer {
	if delay < 0 {
		delay = 0
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	active := make([]kit.Destination, 0, len(dests))
	for _, d := range dests {
		if d.Target.IsZero() {
			continue
		}
		active = append(active, d)
	}
	return &Deliverer{sender: sender, dests: active, delay: delay, log: log, metrics: m}
}

// Destinations lists the destinations that will receive messages.
func (d *Deliverer) Destinations() []kit.Destination { return d.dests }

type DeliveryReport struct {
	Blocks int
	Sent   int
	Failed int
}

// Deliver sends blocks in order. A failure affects only that destination and
// that block.
func (d *Deliverer) Deliver(ctx context.Context, blocks []render.Block) DeliveryReport {
	rep := DeliveryReport{Blocks: len(blocks)}
	if len(d.dests) == 0 {
		d.log.Warn("no destinations configured; dropping summary", logx.Int("blocks", len(blocks)))
		return rep
	}
	// Link previews stay on for summaries.
	opt := &kit.SendOptions{ParseMode: kit.ParseMarkdown}

	for i, b := range blocks {
		if i > 0 && d.delay > 0 {
			if err := sleepCtx(ctx, d.delay); err != nil {
				d.log.Warn("delivery interrupted", logx.Err(err), logx.Int("block", b.Index))
				return rep
			}
		}
		text := b.Text()
		for _, dest := range d.dests {
			if ctx.Err() != nil {
				return rep
			}
			_, err := d.sender.SendText(ctx, dest.Target, text, opt)
			d.metrics.delivery(dest.Name, err == nil)
			if err != nil {
				rep.Failed++
				d.log.Error("send failed", append([]logx.Field{
					logx.String("destination", dest.Name),
					logx.String("chat", dest.Target.String()),
					logx.Int("block", b.Index),
					logx.Err(err),
				}, errorFields(err)...)...)
				continue
			}
			rep.Sent++
			d.log.Debug("block sent",
				logx.String("destination", dest.Name),
				logx.Int("block", b.Index),
				logx.Int("len", render.Len(text)),
			)
		}
	}
	return rep
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func errorFields(err error) []logx.Field { return activity.ErrorFields(err) }
