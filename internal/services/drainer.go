package services

import (
	"sync"
	"time"

	"finanzas/internal/logger"
)

// messageDrainer periodically sweeps messages stuck in RECEIVED through the
// pipeline. It is the safety net behind the synchronous webhook path: any
// message ingested but not processed (crash, restart, admin test ingestion)
// is picked up on the next tick.
type messageDrainer struct {
	messages MessageServicer
	interval time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewMessageDrainer creates a drainer that calls DrainPending every interval.
func NewMessageDrainer(messages MessageServicer, interval time.Duration) MessageDrainer {
	if interval <= 0 {
		interval = time.Minute
	}
	return &messageDrainer{
		messages: messages,
		interval: interval,
	}
}

// Start launches the drain loop in a background goroutine. Calling Start on a
// running drainer is a no-op.
func (d *messageDrainer) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.stopChan = make(chan struct{})
	d.done = make(chan struct{})

	logger.Get().Infow("starting message drainer", "interval", d.interval)
	go d.run(d.stopChan, d.done)
}

func (d *messageDrainer) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.messages.DrainPending()
		case <-stop:
			logger.Get().Infow("message drainer stopped")
			return
		}
	}
}

// Stop signals the drain loop to exit and waits for it to finish. Calling
// Stop on a stopped drainer is a no-op.
func (d *messageDrainer) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stopChan)
	done := d.done
	d.mu.Unlock()

	<-done
}
