package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type PoolWorker struct {
	ctx       context.Context
	logger    *logrus.Entry
	queue     *Queue
	config    *Config
	sqlite    *Sqlite
	hub       *Hub
	workers   []*Worker
	waitGroup sync.WaitGroup
}

func NewPoolWorker(ctx context.Context, logger *logrus.Entry, queue *Queue,
	config *Config, sqlite *Sqlite, hub *Hub) *PoolWorker {
	p := &PoolWorker{
		ctx:    ctx,
		logger: logger,
		queue:  queue,
		config: config,
		sqlite: sqlite,
		hub:    hub,
	}

	for i := 0; i < config.Workers; i++ {
		p.workers = append(p.workers, NewWorker(i, logger.WithField("worker", fmt.Sprint(i)), p, hub))
	}

	return p
}

// RunDispatcher feeds queued jobs to the workers until ctx is cancelled, then
// waits for every worker to return.
func (p *PoolWorker) RunDispatcher() {
	workChannel := make(chan Job)

	p.waitGroup.Add(len(p.workers))
	for _, w := range p.workers {
		go w.start(workChannel)
	}

	defer func() {
		close(workChannel)
		p.waitGroup.Wait()
	}()

	for {
		job, ok := p.queue.Dequeue()
		if !ok {
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		select {
		case <-p.ctx.Done():
			// the job is still pending in the database
			return
		case workChannel <- job:
		}
	}
}

func (p *PoolWorker) GetWorkerInfos() []WorkerInfo {
	infos := make([]WorkerInfo, 0, len(p.workers))
	for _, w := range p.workers {
		infos = append(infos, w.GetInfo())
	}
	return infos
}
