package service

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"trade_desk/internal/models"
	transport "trade_desk/internal/modules/transport/service"
	"trade_desk/internal/wire"
	"trade_desk/pkg/logger"
)

// Ресурсы, которые опрашиваются каждый цикл.
const (
	ResourceAccount    = "account/status"
	ResourcePositions  = "positions"
	ResourceTrades     = "recent-trades"
	ResourceDataStatus = "data_status"
)

// Fetcher — pull-канал адаптера.
type Fetcher interface {
	Poll(ctx context.Context, resource string, params url.Values) ([]byte, error)
}

// Poller раз в interval опрашивает бэкенд и кладёт результат в стор.
// Ошибка опроса не останавливает расписание.
type Poller struct {
	fetch    Fetcher
	store    *Store
	interval time.Duration

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	first  sync.WaitGroup
}

func NewPoller(fetch Fetcher, store *Store, interval time.Duration) *Poller {
	return &Poller{fetch: fetch, store: store, interval: interval}
}

// Start запускает первый цикл сразу и дальше по расписанию.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	job := cron.FuncJob(func() { _ = p.Cycle(ctx) })
	if _, err := c.AddJob(fmt.Sprintf("@every %s", p.interval), job); err != nil {
		cancel()
		return fmt.Errorf("schedule poll: %w", err)
	}

	p.cron, p.cancel = c, cancel
	c.Start()
	p.first.Add(1)
	go func() {
		defer p.first.Done()
		_ = p.Cycle(ctx)
	}()
	logger.Info("poller started, every %s", p.interval)
	return nil
}

// Stop гасит расписание и ждёт текущий цикл.
func (p *Poller) Stop() {
	p.mu.Lock()
	c, cancel := p.cron, p.cancel
	p.cron, p.cancel = nil, nil
	p.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	p.first.Wait()
}

type pollResult struct {
	account   *models.AccountPatch
	positions models.PositionSet
	orders    []models.Order
	stream    *models.StreamPatch
}

// Cycle — один проход по всем ресурсам. Что удалось получить — мержим одним обновлением,
// если упал хоть один ресурс — цикл считается неуспешным.
func (p *Poller) Cycle(ctx context.Context) error {
	var (
		res pollResult
		mu  sync.Mutex
	)
	// без WithContext: упавший ресурс не должен отменять соседей
	var g errgroup.Group

	fetch := func(resource string, decode func([]byte) error) {
		g.Go(func() error {
			body, err := p.fetch.Poll(ctx, resource, nil)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if err := decode(body); err != nil {
				return transport.NewDecodeError(resource, err)
			}
			return nil
		})
	}

	fetch(ResourceAccount, func(b []byte) error {
		acc, err := wire.DecodeAccount(b)
		if err == nil {
			res.account = acc
		}
		return err
	})
	fetch(ResourcePositions, func(b []byte) error {
		set, err := wire.DecodePositions(b)
		if err == nil {
			res.positions = set
		}
		return err
	})
	fetch(ResourceTrades, func(b []byte) error {
		orders, err := wire.DecodeOrders(b)
		if err != nil {
			return err
		}
		if orders == nil {
			orders = []models.Order{}
		}
		res.orders = orders
		return nil
	})
	fetch(ResourceDataStatus, func(b []byte) error {
		st, err := wire.DecodeStatus(b)
		if err == nil {
			res.stream = &st
		}
		return err
	})

	err := g.Wait()

	upd := models.Update{
		Account:   res.account,
		Positions: res.positions,
		Orders:    res.orders,
		Stream:    res.stream,
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	p.store.Apply(models.SourcePoll, upd)
	if err != nil {
		p.store.RecordPollFailure(err)
		return err
	}
	p.store.RecordPollSuccess()
	return nil
}
