// Package workflow drives adding one device: image capture, extraction, review
// and save. Each signed-in session owns one Controller; every operation is a
// transition and every render is a View of the current state.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zombor/warranty-tracker/internal/scanning"
	"github.com/zombor/warranty-tracker/internal/warranty"
)

// State is a workflow state
type State string

const (
	Idle          State = "idle"
	AwaitingImage State = "awaiting_image"
	ImageCaptured State = "image_captured"
	Processing    State = "processing"
	Rejected      State = "rejected"
	ReviewForm    State = "review_form"
	Saving        State = "saving"
	Complete      State = "complete"
	SaveError     State = "save_error"
)

// DefaultSaveTimeout caps how long a save may take
const DefaultSaveTimeout = 30 * time.Second

// Extractor reads warranty fields from an image
type Extractor interface {
	ExtractDocument(ctx context.Context, imageData []byte, contentType string) (*scanning.DocumentData, error)
}

// Saver persists a reviewed form
type Saver interface {
	CreateDevice(ctx context.Context, fields warranty.Fields, bill *warranty.Bill) (*warranty.Device, error)
}

// Image is the captured bill
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// View is the render of a controller
type View struct {
	State         State            `json:"state"`
	HasImage      bool             `json:"has_image"`
	Form          *warranty.Fields `json:"form,omitempty"`
	MissingFields []string         `json:"missing_fields"`
	Message       string           `json:"message,omitempty"`
	Record        *warranty.Device `json:"record,omitempty"`
	Busy          bool             `json:"busy"`
}

// Controller is the state machine for one session
type Controller struct {
	extractor   Extractor
	saver       Saver
	saveTimeout time.Duration

	mu         sync.Mutex
	state      State
	source     ImageSource
	capturing  bool
	image      *Image
	form       warranty.Fields
	missing    []string
	message    string
	record     *warranty.Device
	generation uint64
	stale      bool
}

// NewController creates an idle controller
func NewController(extractor Extractor, saver Saver, saveTimeout time.Duration) *Controller {
	if saveTimeout <= 0 {
		saveTimeout = DefaultSaveTimeout
	}
	return &Controller{
		extractor:   extractor,
		saver:       saver,
		saveTimeout: saveTimeout,
		state:       Idle,
		missing:     []string{},
	}
}

// View returns the current render
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view()
}

func (c *Controller) view() View {
	v := View{
		State:         c.state,
		HasImage:      c.image != nil,
		MissingFields: append([]string{}, c.missing...),
		Message:       c.message,
		Record:        c.record,
		Busy:          c.state == Processing || c.state == Saving || c.capturing,
	}
	if c.state == ReviewForm || c.state == Saving || c.state == SaveError {
		form := c.form
		form.FreeServiceDates = append([]string{}, c.form.FreeServiceDates...)
		v.Form = &form
	}
	return v
}

// begin locks the controller and checks that op is allowed from the current state.
// On success the caller holds the lock.
func (c *Controller) begin(op string, allowed ...State) error {
	c.mu.Lock()
	if c.stale {
		c.mu.Unlock()
		return ErrStale
	}
	for _, s := range allowed {
		if c.state == s {
			return nil
		}
	}
	err := invalidTransition(op, c.state)
	c.mu.Unlock()
	return err
}

// releaseSource closes the capture device, if one is held
func (c *Controller) releaseSource() {
	if c.source == nil {
		return
	}
	closeSource(c.source)
	c.source = nil
}

func closeSource(src ImageSource) {
	if err := src.Close(); err != nil {
		slog.Warn("Failed to release capture device", "error", err)
	}
}

// reset drops everything and moves any in-flight call's result to stale
func (c *Controller) reset() {
	c.releaseSource()
	c.generation++
	c.state = Idle
	c.capturing = false
	c.image = nil
	c.form = warranty.Fields{}
	c.missing = []string{}
	c.message = ""
	c.record = nil
}

// Open starts adding a device. A completed workflow may be reopened.
func (c *Controller) Open() (View, error) {
	if err := c.begin("open", Idle, Complete); err != nil {
		return c.View(), err
	}
	defer c.mu.Unlock()

	c.reset()
	c.state = AwaitingImage
	return c.view(), nil
}

// Attach hands the controller a capture device, replacing any previous one
func (c *Controller) Attach(src ImageSource) (View, error) {
	if err := c.begin("attach", Idle, AwaitingImage); err != nil {
		closeSource(src)
		return c.View(), err
	}
	defer c.mu.Unlock()

	if c.capturing {
		closeSource(src)
		return c.view(), ErrBusy
	}
	c.releaseSource()
	c.source = src
	c.state = AwaitingImage
	c.message = ""
	return c.view(), nil
}

// Capture reads one still from the attached device. The device is released
// whether or not the capture succeeds.
func (c *Controller) Capture(ctx context.Context) (View, error) {
	if err := c.begin("capture", AwaitingImage); err != nil {
		return c.View(), err
	}
	if c.capturing {
		defer c.mu.Unlock()
		return c.view(), ErrBusy
	}
	if c.source == nil {
		defer c.mu.Unlock()
		return c.view(), invalidTransition("capture without a device", c.state)
	}
	src := c.source
	c.source = nil
	c.capturing = true
	gen := c.generation
	c.mu.Unlock()

	data, contentType, err := src.Capture(ctx)
	closeSource(src)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return c.view(), ErrStale
	}
	c.capturing = false
	if err == nil && len(data) == 0 {
		err = ErrNoImage
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrCaptureFailed, err)
		c.message = UserMessage(err)
		slog.Warn("Capture failed", "error", err)
		return c.view(), err
	}

	c.image = &Image{Filename: "capture", ContentType: contentType, Data: data}
	c.state = ImageCaptured
	c.message = ""
	return c.view(), nil
}

// Upload takes an image from the file picker
func (c *Controller) Upload(filename string, data []byte, contentType string) (View, error) {
	if err := c.begin("upload", Idle, AwaitingImage); err != nil {
		return c.View(), err
	}
	defer c.mu.Unlock()

	if c.capturing {
		return c.view(), ErrBusy
	}
	if len(data) == 0 {
		return c.view(), ErrNoImage
	}
	c.releaseSource()
	c.image = &Image{Filename: filename, ContentType: contentType, Data: data}
	c.state = ImageCaptured
	c.message = ""
	return c.view(), nil
}

// Extract sends the captured image to the extraction backend. An invalid
// document ends in Rejected with nothing merged; a backend fault returns to
// ImageCaptured so the user can enter details manually.
// The call outlives ctx cancellation; only the backend timeout bounds it.
func (c *Controller) Extract(ctx context.Context) (View, error) {
	if err := c.begin("extract", ImageCaptured, Processing); err != nil {
		return c.View(), err
	}
	if c.state == Processing {
		defer c.mu.Unlock()
		return c.view(), ErrBusy
	}
	img := c.image
	c.state = Processing
	c.message = ""
	c.missing = []string{}
	gen := c.generation
	c.mu.Unlock()

	draft, err := c.extractor.ExtractDocument(context.WithoutCancel(ctx), img.Data, img.ContentType)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		slog.Info("Discarding stale extraction result")
		return c.view(), ErrStale
	}

	if err != nil {
		if !errors.Is(err, scanning.ErrExtractionFailed) {
			err = fmt.Errorf("%w: %w", scanning.ErrExtractionFailed, err)
		}
		slog.Error("Extraction failed", "error", err)
		c.state = ImageCaptured
		c.message = UserMessage(err)
		return c.view(), err
	}

	if !draft.IsValidDocument {
		msg := strings.TrimSpace(draft.ValidationMessage)
		if msg == "" {
			msg = DefaultRejectionMessage
		}
		c.state = Rejected
		c.message = msg
		return c.view(), &InvalidDocumentError{Message: msg}
	}

	c.form = formFromDraft(draft)
	c.missing = warranty.MissingFields(c.form)
	c.state = ReviewForm
	return c.view(), nil
}

func formFromDraft(d *scanning.DocumentData) warranty.Fields {
	return warranty.Fields{
		BrandName:        d.BrandName,
		Category:         d.Category,
		DeviceSerial:     d.DeviceSerial,
		WarrantyPeriod:   d.WarrantyPeriod,
		PurchaseDate:     d.PurchaseDate,
		ExpiryDate:       d.ExpiryDate,
		FreeServiceDates: append([]string{}, d.FreeServiceDates...),
		HelplineNumber:   d.HelplineNumber,
		InvoiceNumber:    d.InvoiceNumber,
		ServiceReceipt:   d.ServiceReceipt,
	}
}

// EnterManually skips extraction and opens an empty form, keeping the image
func (c *Controller) EnterManually() (View, error) {
	if err := c.begin("manual entry", ImageCaptured); err != nil {
		return c.View(), err
	}
	defer c.mu.Unlock()

	c.form = warranty.Fields{FreeServiceDates: []string{}}
	c.missing = warranty.MissingFields(c.form)
	c.message = ""
	c.state = ReviewForm
	return c.view(), nil
}

// Discard drops the image and waits for a new one
func (c *Controller) Discard() (View, error) {
	if err := c.begin("discard", ImageCaptured, Rejected); err != nil {
		return c.View(), err
	}
	defer c.mu.Unlock()

	c.image = nil
	c.form = warranty.Fields{}
	c.missing = []string{}
	c.message = ""
	c.generation++
	c.state = AwaitingImage
	return c.view(), nil
}

// setField assigns one form field by its JSON name
func setField(f *warranty.Fields, field, value string) error {
	switch field {
	case "brand_name":
		f.BrandName = value
	case "category":
		f.Category = value
	case "device_serial":
		f.DeviceSerial = value
	case "warranty_period":
		f.WarrantyPeriod = value
	case "purchase_date":
		f.PurchaseDate = value
	case "expiry_date":
		f.ExpiryDate = value
	case "helpline_number":
		f.HelplineNumber = value
	case "invoice_number":
		f.InvoiceNumber = value
	case "service_receipt":
		f.ServiceReceipt = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// Edit changes one form field and recomputes the missing list
func (c *Controller) Edit(field, value string) (View, error) {
	if err := c.begin("edit", ReviewForm, SaveError); err != nil {
		return c.View(), err
	}
	defer c.mu.Unlock()

	if err := setField(&c.form, field, value); err != nil {
		return c.view(), err
	}
	c.missing = warranty.MissingFields(c.form)
	return c.view(), nil
}

// SetServiceDates replaces the free service schedule. Blank entries are dropped.
func (c *Controller) SetServiceDates(dates []string) (View, error) {
	if err := c.begin("edit service dates", ReviewForm, SaveError); err != nil {
		return c.View(), err
	}
	defer c.mu.Unlock()

	clean := make([]string, 0, len(dates))
	for _, d := range dates {
		if d = strings.TrimSpace(d); d != "" {
			clean = append(clean, d)
		}
	}
	c.form.FreeServiceDates = clean
	return c.view(), nil
}

// Rescan throws the form away and goes back to the captured image
func (c *Controller) Rescan() (View, error) {
	if err := c.begin("rescan", ReviewForm, SaveError); err != nil {
		return c.View(), err
	}
	defer c.mu.Unlock()

	c.form = warranty.Fields{}
	c.missing = []string{}
	c.message = ""
	if c.image == nil {
		c.state = AwaitingImage
	} else {
		c.state = ImageCaptured
	}
	return c.view(), nil
}

// Save persists the form. A failure keeps every edit and shows the reason; the
// user may fix the form and save again.
// The write outlives ctx cancellation and is bounded by the save timeout.
func (c *Controller) Save(ctx context.Context) (View, error) {
	if err := c.begin("save", ReviewForm, SaveError, Saving); err != nil {
		return c.View(), err
	}
	if c.state == Saving {
		defer c.mu.Unlock()
		return c.view(), ErrBusy
	}
	fields := c.form
	fields.FreeServiceDates = append([]string{}, c.form.FreeServiceDates...)
	var bill *warranty.Bill
	if c.image != nil {
		bill = &warranty.Bill{Filename: c.image.Filename, ContentType: c.image.ContentType, Data: c.image.Data}
	}
	c.state = Saving
	c.message = ""
	gen := c.generation
	c.mu.Unlock()

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.saveTimeout)
	device, err := c.saver.CreateDevice(saveCtx, fields, bill)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		slog.Info("Discarding stale save result", "saved", err == nil)
		return c.view(), ErrStale
	}

	if err != nil {
		if !errors.Is(err, warranty.ErrDuplicateEntry) {
			slog.Error("Failed to save device", "error", err)
		}
		c.state = SaveError
		c.message = UserMessage(err)
		return c.view(), err
	}

	c.image = nil
	c.form = warranty.Fields{}
	c.missing = []string{}
	c.record = device
	c.state = Complete
	return c.view(), nil
}

// Cancel abandons the workflow from any state. An outstanding extraction or save
// is not interrupted but its result will be discarded.
func (c *Controller) Cancel() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	return c.view()
}

// Invalidate cancels the workflow for good. Every later call returns ErrStale.
func (c *Controller) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	c.stale = true
}
