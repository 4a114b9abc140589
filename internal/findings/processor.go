// internal/findings/processor.go
package findings

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/config"
)

// BatchWriter persists a batch of findings.
type BatchWriter interface {
	WriteBatch(ctx context.Context, batch []schemas.Finding) error
}

// JSONLinesWriter writes one JSON document per finding.
type JSONLinesWriter struct {
	mu  sync.Mutex
	enc *jsoniter.Encoder
}

func NewJSONLinesWriter(w io.Writer) *JSONLinesWriter {
	return &JSONLinesWriter{enc: jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)}
}

func (w *JSONLinesWriter) WriteBatch(_ context.Context, batch []schemas.Finding) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, f := range batch {
		if err := w.enc.Encode(f); err != nil {
			return fmt.Errorf("encoding finding %s: %w", f.Kind.Name, err)
		}
	}
	return nil
}

// Processor buffers findings arriving on a channel and hands them to a
// BatchWriter when the batch is full, on every flush interval, and on
// shutdown. Batches are written from the processing loop, so output order
// matches arrival order.
type Processor struct {
	inputChan <-chan schemas.Finding
	writer    BatchWriter
	logger    *zap.Logger
	cfg       config.EngineConfig

	buffer []schemas.Finding
	wg     sync.WaitGroup

	mu       sync.Mutex
	written  int
	firstErr error

	startOnce  sync.Once
	stopOnce   sync.Once
	stopSignal chan struct{}
}

// NewProcessor initializes a findings processor. Non-positive batch sizes and
// intervals fall back to 100 findings and two seconds.
func NewProcessor(inputChan <-chan schemas.Finding, writer BatchWriter, logger *zap.Logger, engineCfg config.EngineConfig) *Processor {
	if engineCfg.FindingsBatchSize <= 0 {
		engineCfg.FindingsBatchSize = 100
	}
	if engineCfg.FindingsFlushInterval <= 0 {
		engineCfg.FindingsFlushInterval = 2 * time.Second
	}

	return &Processor{
		inputChan:  inputChan,
		writer:     writer,
		logger:     logger.Named("findings_processor"),
		cfg:        engineCfg,
		buffer:     make([]schemas.Finding, 0, engineCfg.FindingsBatchSize),
		stopSignal: make(chan struct{}),
	}
}

// Start launches the processing loop. Calling it more than once has no effect.
func (p *Processor) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.run(ctx)
	})
}

func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.FindingsFlushInterval)
	defer ticker.Stop()

	p.logger.Debug("Findings processor started.",
		zap.Int("batch_size", p.cfg.FindingsBatchSize),
		zap.Duration("flush_interval", p.cfg.FindingsFlushInterval))

	for {
		select {
		case finding, ok := <-p.inputChan:
			if !ok {
				p.flush()
				return
			}
			p.processFinding(finding)

		case <-ticker.C:
			p.flush()

		case <-ctx.Done():
			p.logger.Warn("Context cancelled. Flushing what has been received.")
			p.drainChannel()
			p.flush()
			return

		case <-p.stopSignal:
			p.drainChannel()
			p.flush()
			return
		}
	}
}

// drainChannel consumes whatever is already queued on the input channel.
func (p *Processor) drainChannel() {
	count := 0
	for {
		select {
		case finding, ok := <-p.inputChan:
			if !ok {
				return
			}
			p.processFinding(finding)
			count++
		default:
			p.logger.Debug("Channel drained.", zap.Int("count", count))
			return
		}
	}
}

func (p *Processor) processFinding(finding schemas.Finding) {
	p.buffer = append(p.buffer, finding)
	if len(p.buffer) >= p.cfg.FindingsBatchSize {
		p.flush()
	}
}

func (p *Processor) flush() {
	if len(p.buffer) == 0 {
		return
	}
	batch := p.buffer
	p.buffer = make([]schemas.Finding, 0, p.cfg.FindingsBatchSize)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := p.writer.WriteBatch(ctx, batch)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.logger.Error("Failed to write findings batch.", zap.Error(err), zap.Int("batch_size", len(batch)))
		if p.firstErr == nil {
			p.firstErr = err
		}
		return
	}
	p.written += len(batch)
	p.logger.Debug("Flushed findings batch.", zap.Int("count", len(batch)))
}

// Stop drains the input channel, writes the remaining buffer and waits for
// the loop to exit. It is idempotent.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() { close(p.stopSignal) })
	p.wg.Wait()
}

// Written returns how many findings were written successfully.
func (p *Processor) Written() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written
}

// Err returns the first write failure, if any.
func (p *Processor) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstErr
}
