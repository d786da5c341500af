package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/phin1x/go-ipp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/photobooth/internal/model"
	"github.com/Riboost-Studio/photobooth/internal/printing"
)

type fakeIPP struct {
	printers map[string]ipp.Attributes
	jobs     map[int]ipp.Attributes
	err      error

	printed   []ipp.Document
	body      []byte
	allJobs   []bool
	canceled  []int
	released  []int
	resumed   []string
	accepting []string
}

func (f *fakeIPP) GetPrinters([]string) (map[string]ipp.Attributes, error) {
	return f.printers, f.err
}

func (f *fakeIPP) PrintJob(doc ipp.Document, _ string, _ map[string]any) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.printed = append(f.printed, doc)
	f.body, _ = io.ReadAll(doc.Document)
	return 42, nil
}

func (f *fakeIPP) GetJobs(all bool, _ []string) (map[int]ipp.Attributes, error) {
	f.allJobs = append(f.allJobs, all)
	return f.jobs, f.err
}

func (f *fakeIPP) CancelJob(id int) error       { f.canceled = append(f.canceled, id); return f.err }
func (f *fakeIPP) ReleaseJob(id int) error      { f.released = append(f.released, id); return f.err }
func (f *fakeIPP) ResumePrinter(p string) error { f.resumed = append(f.resumed, p); return f.err }
func (f *fakeIPP) AcceptJobs(p string) error    { f.accepting = append(f.accepting, p); return f.err }

func attrs(kv map[string]any) ipp.Attributes {
	out := ipp.Attributes{}
	for k, v := range kv {
		out[k] = []ipp.Attribute{{Name: k, Value: v}}
	}
	return out
}

func TestCUPSListPrinters(t *testing.T) {
	f := &fakeIPP{printers: map[string]ipp.Attributes{
		"Office": attrs(map[string]any{
			"printer-name":              "Office",
			"device-uri":                "ipp://10.0.0.5/ipp/print",
			"printer-state":             3,
			"printer-is-accepting-jobs": true,
		}),
		"Canon_SELPHY": attrs(map[string]any{
			"printer-name":              "Canon_SELPHY",
			"device-uri":                "usb://Canon/SELPHY%20CP1300?serial=123",
			"printer-state":             5,
			"printer-state-message":     "Paper tray empty",
			"printer-is-accepting-jobs": false,
		}),
	}}
	b := newCUPSBackend(f, zerolog.Nop())

	printers, err := b.ListPrinters(context.Background())
	require.NoError(t, err)
	require.Len(t, printers, 2)

	assert.Equal(t, model.PrinterInfo{
		Name:         "Canon_SELPHY",
		DeviceURI:    "usb://Canon/SELPHY%20CP1300?serial=123",
		Transport:    model.TransportUSB,
		State:        model.PrinterStopped,
		StateMessage: "Paper tray empty",
		Accepting:    false,
	}, printers[0])
	assert.Equal(t, model.TransportNetwork, printers[1].Transport)
	assert.True(t, printers[1].Accepting)

	p, err := printing.SelectLocal(printers)
	require.NoError(t, err)
	assert.Equal(t, "Canon_SELPHY", p.Name)
}

func TestCUPSListJobs(t *testing.T) {
	f := &fakeIPP{jobs: map[int]ipp.Attributes{
		7: attrs(map[string]any{"job-id": 7, "job-state": 9, "job-state-reasons": "job-completed-successfully"}),
		8: attrs(map[string]any{"job-id": 8, "job-state": 8, "job-printer-state-message": "Ribbon error"}),
		9: attrs(map[string]any{"job-state": 3, "job-state-reasons": "none"}),
	}}
	b := newCUPSBackend(f, zerolog.Nop())

	jobs, err := b.ListJobs(context.Background(), printing.ScopeAll)
	require.NoError(t, err)

	assert.Equal(t, model.JobInfo{ID: 7, State: model.JobCompleted, Message: "job-completed-successfully"}, jobs[7])
	assert.Equal(t, model.JobInfo{ID: 8, State: model.JobAborted, Message: "Ribbon error"}, jobs[8])
	assert.Equal(t, model.JobInfo{ID: 9, State: model.JobPending}, jobs[9])

	_, err = b.ListJobs(context.Background(), printing.ScopeNotCompleted)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, f.allJobs)
}

func TestCUPSSubmit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Final_3.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o644))
	f := &fakeIPP{}
	b := newCUPSBackend(f, zerolog.Nop())

	id, err := b.Submit(context.Background(), "Canon_SELPHY", path, "PhotoBooth")
	require.NoError(t, err)
	assert.Equal(t, model.JobID(42), id)

	require.Len(t, f.printed, 1)
	assert.Equal(t, "PhotoBooth", f.printed[0].Name)
	assert.Equal(t, "image/png", f.printed[0].MimeType)
	assert.Equal(t, len("png-bytes"), f.printed[0].Size)
	assert.Equal(t, "png-bytes", string(f.body))
}

func TestCUPSSubmitMissingFile(t *testing.T) {
	b := newCUPSBackend(&fakeIPP{}, zerolog.Nop())
	_, err := b.Submit(context.Background(), "p", filepath.Join(t.TempDir(), "nope.png"), "PhotoBooth")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCUPSJobAndPrinterControl(t *testing.T) {
	f := &fakeIPP{}
	b := newCUPSBackend(f, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, b.Cancel(ctx, 5))
	require.NoError(t, b.ResumeHeld(ctx, 6))
	require.NoError(t, b.Enable(ctx, "Canon_SELPHY"))
	require.NoError(t, b.AcceptJobs(ctx, "Canon_SELPHY"))

	assert.Equal(t, []int{5}, f.canceled)
	assert.Equal(t, []int{6}, f.released)
	assert.Equal(t, []string{"Canon_SELPHY"}, f.resumed)
	assert.Equal(t, []string{"Canon_SELPHY"}, f.accepting)
}

func TestCUPSWrapsTransportErrors(t *testing.T) {
	cause := errors.New("connection refused")
	b := newCUPSBackend(&fakeIPP{err: cause}, zerolog.Nop())

	_, err := b.ListPrinters(context.Background())
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "get-printers")

	err = b.Cancel(context.Background(), 3)
	require.ErrorIs(t, err, cause)
}

func TestCUPSHonorsCanceledContext(t *testing.T) {
	f := &fakeIPP{}
	b := newCUPSBackend(f, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.ListJobs(ctx, printing.ScopeAll)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.allJobs)
}

func TestMimeTypeFor(t *testing.T) {
	assert.Equal(t, "image/jpeg", mimeTypeFor("a/B.JPG"))
	assert.Equal(t, "image/png", mimeTypeFor("x.png"))
	assert.Equal(t, "application/pdf", mimeTypeFor("x.pdf"))
	assert.Equal(t, "application/octet-stream", mimeTypeFor("x"))
}
