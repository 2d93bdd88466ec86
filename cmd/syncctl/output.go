package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"bookingsync/pkg/client"
	"bookingsync/pkg/model"

	"gopkg.in/yaml.v3"
)

type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) *printer {
	return &printer{w: w, format: format}
}

func (p *printer) intents(intents []model.BookingIntent) error {
	if p.format != "table" {
		return p.structured(intents)
	}

	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tRESOURCE\tCHECK-IN\tCHECK-OUT\tGUESTS\tRETRIES\tLAST ERROR")
	for _, intent := range intents {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			intent.ID,
			intent.Status,
			intent.ResourceID,
			intent.CheckIn.Format(time.DateOnly),
			intent.CheckOut.Format(time.DateOnly),
			intent.Guests,
			intent.RetryCount,
			intent.LastError,
		)
	}
	return tw.Flush()
}

func (p *printer) syncReport(report *client.SyncReport) error {
	if p.format != "table" {
		return p.structured(report)
	}
	if !report.Started {
		_, err := fmt.Fprintf(p.w, "no pass ran (%s)\n", report.SkipReason)
		return err
	}
	_, err := fmt.Fprintf(p.w, "processed %d: %d confirmed, %d retried, %d failed, %d skipped\n",
		report.Processed, report.Confirmed, report.Retried, report.Failed, report.Skipped)
	return err
}

func (p *printer) value(v any, text string) error {
	if p.format != "table" {
		return p.structured(v)
	}
	_, err := fmt.Fprintln(p.w, text)
	return err
}

func (p *printer) message(text string) error {
	return p.value(map[string]string{"result": text}, text)
}

// structured renders v through its JSON form so YAML output uses the same
// field names as the API.
func (p *printer) structured(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	switch p.format {
	case "json":
		_, err = fmt.Fprintln(p.w, string(data))
		return err
	case "yaml":
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", p.format)
	}
}

// parseRequest accepts a booking request in YAML or JSON, with the API's
// field names.
func parseRequest(data []byte) (*model.BookingRequest, error) {
	var generic map[string]any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("invalid request document: %w", err)
	}

	normalized, err := json.Marshal(generic)
	if err != nil {
		return nil, err
	}

	var req model.BookingRequest
	if err := json.Unmarshal(normalized, &req); err != nil {
		return nil, fmt.Errorf("invalid request document: %w", err)
	}
	return &req, nil
}
