package automation

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/price-reconciler/pkg/models"
)

// maxLine bounds a single protocol line
const maxLine = 1024 * 1024

// PageExtractor reads one product page. extract.BrowserSession satisfies it.
type PageExtractor interface {
	Extract(ctx context.Context, rawURL string) models.Extraction
}

// Serve is the worker loop. It reads tasks from in, one JSON object per line,
// and writes exactly one Result per task to out. It returns nil on the stop
// sentinel or EOF, and ctx.Err() when ctx ends first.
func Serve(ctx context.Context, in io.Reader, out io.Writer, page PageExtractor, domain string, log *logrus.Entry) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), maxLine)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	enc := json.NewEncoder(out)
	log.Info("Automation worker ready, waiting for tasks")
	handled := 0
	for {
		var line []byte
		var ok bool
		select {
		case <-ctx.Done():
			log.Warnf("Worker interrupted after %d tasks: %v", handled, ctx.Err())
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			select {
			case err := <-readErr:
				if err != nil {
					return fmt.Errorf("read tasks: %w", err)
				}
			default:
			}
			log.Infof("Task stream closed after %d tasks", handled)
			return nil
		}
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var task Task
		if err := json.Unmarshal(line, &task); err != nil {
			log.Errorf("Invalid task data %q: %v", truncate(string(line), 200), err)
			if err := enc.Encode(invalidResult(task, domain, string(line))); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
			handled++
			continue
		}
		if task.Stop {
			log.Infof("Stop signal received after %d tasks", handled)
			return nil
		}
		if !task.valid() {
			log.Errorf("Invalid task data: %s", truncate(string(line), 200))
			if err := enc.Encode(invalidResult(task, domain, string(line))); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
			handled++
			continue
		}

		res := runTask(ctx, page, domain, task, log)
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		handled++
	}
}

// runTask extracts one page. A panic becomes a WorkerLoopError result
func runTask(ctx context.Context, page PageExtractor, domain string, task Task, log *logrus.Entry) (res Result) {
	taskLog := log.WithFields(logrus.Fields{"task_id": task.ID, "product": task.Product, "url": task.URL})
	res = Result{ID: task.ID, URL: task.URL, Domain: domain, Product: task.Product}
	defer func() {
		if r := recover(); r != nil {
			taskLog.Errorf("PANIC in worker loop: %v", r)
			res.Name, res.Price = "", nil
			res.setStatus(models.Internal(models.ReasonWorkerLoopError, fmt.Sprint(r)))
		}
	}()

	taskLog.Info("Processing task")
	ext := page.Extract(ctx, task.URL)
	res.Name, res.Price = ext.Name, ext.Price
	res.setStatus(ext.Status)
	taskLog.WithField("status", ext.Status.String()).Debug("Task done")
	return res
}

func invalidResult(task Task, domain, raw string) Result {
	res := Result{ID: task.ID, URL: task.URL, Domain: domain, Product: task.Product}
	if res.URL == "" {
		res.URL = truncate(raw, 200)
	}
	res.setStatus(models.Internal(models.ReasonInvalidTaskData, ""))
	return res
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
