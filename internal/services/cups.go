package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phin1x/go-ipp"
	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/photobooth/internal/model"
	"github.com/Riboost-Studio/photobooth/internal/printing"
)

var (
	printerAttributes = []string{
		"printer-name",
		"device-uri",
		"printer-state",
		"printer-state-message",
		"printer-is-accepting-jobs",
	}
	jobAttributes = []string{
		"job-id",
		"job-state",
		"job-state-reasons",
		"job-printer-state-message",
	}
)

// ippClient is the subset of the CUPS client the backend uses.
type ippClient interface {
	GetPrinters(attributes []string) (map[string]ipp.Attributes, error)
	PrintJob(doc ipp.Document, printer string, attributes map[string]any) (int, error)
	GetJobs(all bool, attributes []string) (map[int]ipp.Attributes, error)
	CancelJob(id int) error
	ReleaseJob(id int) error
	ResumePrinter(printer string) error
	AcceptJobs(printer string) error
}

type cupsClient struct {
	c *ipp.CUPSClient
}

func (a cupsClient) GetPrinters(attributes []string) (map[string]ipp.Attributes, error) {
	return a.c.GetPrinters(attributes)
}

func (a cupsClient) PrintJob(doc ipp.Document, printer string, attributes map[string]any) (int, error) {
	return a.c.PrintJob(doc, printer, attributes)
}

func (a cupsClient) GetJobs(all bool, attributes []string) (map[int]ipp.Attributes, error) {
	if all {
		return a.c.GetJobs("", "", "all", false, 0, 0, attributes)
	}
	return a.c.GetJobs("", "", "not-completed", false, 0, 0, attributes)
}

func (a cupsClient) CancelJob(id int) error {
	return a.c.CancelJob(id, false)
}

func (a cupsClient) ReleaseJob(id int) error {
	return a.c.HoldJobUntil(id, "no-hold")
}

func (a cupsClient) ResumePrinter(printer string) error {
	return a.c.ResumePrinter(printer)
}

func (a cupsClient) AcceptJobs(printer string) error {
	return a.c.AcceptJobs(printer)
}

// CUPSBackend talks to the local CUPS scheduler over IPP.
type CUPSBackend struct {
	client ippClient
	log    zerolog.Logger
}

var _ printing.Backend = (*CUPSBackend)(nil)

func NewCUPSBackend(cfg model.CUPSConfig, log zerolog.Logger) *CUPSBackend {
	host, port := cfg.Host, cfg.Port
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = 631
	}
	return newCUPSBackend(cupsClient{c: ipp.NewCUPSClient(host, port, cfg.Username, cfg.Password, cfg.TLS)}, log)
}

func newCUPSBackend(client ippClient, log zerolog.Logger) *CUPSBackend {
	return &CUPSBackend{client: client, log: log.With().Str("component", "cups").Logger()}
}

func (b *CUPSBackend) ListPrinters(ctx context.Context) ([]model.PrinterInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := b.client.GetPrinters(printerAttributes)
	if err != nil {
		return nil, fmt.Errorf("cups get-printers: %w", err)
	}

	printers := make([]model.PrinterInfo, 0, len(raw))
	for name, attrs := range raw {
		printers = append(printers, printerInfo(name, attrs))
	}
	// CUPS returns a map; keep enumeration order stable by name.
	sort.Slice(printers, func(i, j int) bool { return printers[i].Name < printers[j].Name })
	return printers, nil
}

func (b *CUPSBackend) Submit(ctx context.Context, printer, filePath, title string) (model.JobID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := os.Open(filePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	doc := ipp.Document{
		Document: f,
		Size:     int(info.Size()),
		Name:     title,
		MimeType: mimeTypeFor(filePath),
	}
	id, err := b.client.PrintJob(doc, printer, map[string]any{})
	if err != nil {
		return 0, fmt.Errorf("cups print-job: %w", err)
	}
	b.log.Debug().Str("printer", printer).Int("job_id", id).Str("file", filePath).Msg("Job submitted")
	return model.JobID(id), nil
}

func (b *CUPSBackend) ListJobs(ctx context.Context, scope printing.JobScope) (map[model.JobID]model.JobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := b.client.GetJobs(scope == printing.ScopeAll, jobAttributes)
	if err != nil {
		return nil, fmt.Errorf("cups get-jobs: %w", err)
	}

	jobs := make(map[model.JobID]model.JobInfo, len(raw))
	for id, attrs := range raw {
		jobs[model.JobID(id)] = jobInfo(id, attrs)
	}
	return jobs, nil
}

func (b *CUPSBackend) Cancel(ctx context.Context, id model.JobID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.client.CancelJob(int(id)); err != nil {
		return fmt.Errorf("cups cancel-job %d: %w", id, err)
	}
	return nil
}

func (b *CUPSBackend) ResumeHeld(ctx context.Context, id model.JobID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.client.ReleaseJob(int(id)); err != nil {
		return fmt.Errorf("cups release-job %d: %w", id, err)
	}
	return nil
}

func (b *CUPSBackend) Enable(ctx context.Context, printer string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.client.ResumePrinter(printer); err != nil {
		return fmt.Errorf("cups resume-printer %s: %w", printer, err)
	}
	return nil
}

func (b *CUPSBackend) AcceptJobs(ctx context.Context, printer string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.client.AcceptJobs(printer); err != nil {
		return fmt.Errorf("cups accept-jobs %s: %w", printer, err)
	}
	return nil
}

// --- Attribute decoding ---

func printerInfo(name string, attrs ipp.Attributes) model.PrinterInfo {
	if n := attrString(attrs, "printer-name"); n != "" {
		name = n
	}
	uri := attrString(attrs, "device-uri")
	return model.PrinterInfo{
		Name:         name,
		DeviceURI:    uri,
		Transport:    model.TransportFromURI(uri),
		State:        model.PrinterState(attrInt(attrs, "printer-state")),
		StateMessage: attrString(attrs, "printer-state-message"),
		Accepting:    attrBool(attrs, "printer-is-accepting-jobs"),
	}
}

func jobInfo(id int, attrs ipp.Attributes) model.JobInfo {
	msg := attrString(attrs, "job-printer-state-message")
	if msg == "" {
		msg = strings.Join(attrStrings(attrs, "job-state-reasons"), ", ")
		if msg == "none" {
			msg = ""
		}
	}
	if v := attrInt(attrs, "job-id"); v != 0 {
		id = v
	}
	return model.JobInfo{
		ID:      model.JobID(id),
		State:   model.JobState(attrInt(attrs, "job-state")),
		Message: msg,
	}
}

func attrValue(attrs ipp.Attributes, name string) any {
	values := attrs[name]
	if len(values) == 0 {
		return nil
	}
	return values[0].Value
}

func attrString(attrs ipp.Attributes, name string) string {
	switch v := attrValue(attrs, name).(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func attrStrings(attrs ipp.Attributes, name string) []string {
	var out []string
	for _, a := range attrs[name] {
		if s, ok := a.Value.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func attrInt(attrs ipp.Attributes, name string) int {
	switch v := attrValue(attrs, name).(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}

func attrBool(attrs ipp.Attributes, name string) bool {
	v, _ := attrValue(attrs, name).(bool)
	return v
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
