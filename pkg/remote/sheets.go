package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// SheetsStore keeps each collection in a worksheet of one Google spreadsheet.
// The worksheet title is the collection name.
type SheetsStore struct {
	cfg config.RemoteConfig
	log *logrus.Entry

	mu  sync.Mutex
	svc *sheets.Service
}

// NewSheetsStore creates a SheetsStore. The API client is created on first use
func NewSheetsStore(cfg config.RemoteConfig, log *logrus.Entry) *SheetsStore {
	return &SheetsStore{cfg: cfg, log: log.WithField("remote", "sheets")}
}

// Name implements Store
func (s *SheetsStore) Name() string { return "sheets" }

// service returns the shared API client, creating it once even under concurrent first use
func (s *SheetsStore) service(ctx context.Context) (*sheets.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.svc != nil {
		return s.svc, nil
	}

	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	switch {
	case s.cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(s.cfg.CredentialsFile))
	case s.cfg.Endpoint != "":
		opts = append(opts, option.WithoutAuthentication())
	}
	if s.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.cfg.Endpoint))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create sheets client: %w", utils.ErrRemoteStore, err)
	}
	s.log.Debug("Sheets client initialized")
	s.svc = svc
	return svc, nil
}

func worksheet(c models.Collection) string {
	return "'" + strings.ReplaceAll(string(c), "'", "''") + "'"
}

// Load implements Store
func (s *SheetsStore) Load(ctx context.Context, c models.Collection) (*models.Sheet, error) {
	svc, err := s.service(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout(s.cfg))
	defer cancel()

	resp, err := svc.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, worksheet(c)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read '%s': %w", utils.ErrRemoteStore, c, err)
	}
	sheet := &models.Sheet{}
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = strings.TrimSpace(fmt.Sprint(v))
		}
		if i == 0 {
			sheet.Header = cells
			continue
		}
		sheet.Rows = append(sheet.Rows, cells)
	}
	s.log.WithFields(logrus.Fields{"collection": c, "rows": len(sheet.Rows)}).Info("Loaded remote collection")
	return sheet, nil
}

// Replace implements Store: clear the worksheet, then write header and rows from A1
func (s *SheetsStore) Replace(ctx context.Context, c models.Collection, sheet *models.Sheet) error {
	svc, err := s.service(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, callTimeout(s.cfg))
	defer cancel()

	out := normalize(c, sheet)
	values := make([][]interface{}, 0, len(out.Rows)+1)
	for _, row := range out.Values() {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		values = append(values, cells)
	}

	s.log.WithFields(logrus.Fields{"collection": c, "rows": len(out.Rows)}).Info("Clearing and rewriting remote collection")
	if _, err := svc.Spreadsheets.Values.Clear(s.cfg.SpreadsheetID, worksheet(c), &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: clear '%s': %w", utils.ErrRemoteStore, c, err)
	}
	_, err = svc.Spreadsheets.Values.Update(s.cfg.SpreadsheetID, worksheet(c)+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: write '%s': %w", utils.ErrRemoteStore, c, err)
	}
	return nil
}
