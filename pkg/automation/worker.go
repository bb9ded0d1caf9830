package automation

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/extract"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// RunWorker is the body of the worker process: it launches the browser for the
// configured browser competitor and serves tasks until the sentinel, EOF or ctx ends.
// A browser launch failure is returned before any task is read.
func RunWorker(ctx context.Context, appCfg config.AppConfig, in io.Reader, out io.Writer, log *logrus.Entry) error {
	comp, ok := appCfg.BrowserCompetitor()
	if !ok {
		return fmt.Errorf("%w: no competitor is configured with browser: true", utils.ErrConfigValidation)
	}
	workerLog := log.WithField("domain", comp.Domain)

	session, err := extract.NewBrowserSession(ctx, extract.BrowserOptionsFrom(appCfg, comp), comp, workerLog)
	if err != nil {
		workerLog.Errorf("Browser launch failed: %v", err)
		return fmt.Errorf("%w: %w", utils.ErrEngine, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			workerLog.Warnf("Browser close: %v", err)
		}
	}()

	return Serve(ctx, in, out, session, comp.Domain, workerLog)
}
