package main

import (
	"fmt"
	"io"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/bft-labs/auditship/internal/adapters/fs"
	"github.com/bft-labs/auditship/internal/codec"
	"github.com/bft-labs/auditship/internal/domain"
)

type inspectSummary struct {
	Path         string          `json:"path"`
	Records      int             `json:"records"`
	MinRequestID uint64          `json:"min_request_id"`
	MaxRequestID uint64          `json:"max_request_id"`
	Oldest       time.Time       `json:"oldest_send_time"`
	Newest       time.Time       `json:"newest_send_time"`
	PayloadBytes int64           `json:"payload_bytes"`
	MaxResends   int             `json:"max_resend_count"`
	Entries      []inspectRecord `json:"entries,omitempty"`
}

type inspectRecord struct {
	RequestID   uint64            `json:"request_id"`
	SendTime    time.Time         `json:"send_time"`
	ResendCount int               `json:"resend_count"`
	Header      *codec.Header     `json:"header,omitempty"`
	Items       []codec.AuditItem `json:"items,omitempty"`
	Error       string            `json:"decode_error,omitempty"`
}

func newInspectCommand() *cobra.Command {
	var records bool
	cmd := &cobra.Command{
		Use:   "inspect <disaster-file>",
		Short: "Summarize the records held in a disaster file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return err
			}
			recs, err := fs.ReadRecords(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			s := summarize(recs, records)
			s.Path = args[0]
			return writeJSON(cmd.OutOrStdout(), s)
		},
	}
	cmd.Flags().BoolVar(&records, "records", false, "decode and print every record")
	return cmd
}

func summarize(recs []domain.AuditRecord, withEntries bool) inspectSummary {
	s := inspectSummary{Records: len(recs)}
	for i, r := range recs {
		if i == 0 || r.RequestID < s.MinRequestID {
			s.MinRequestID = r.RequestID
		}
		if r.RequestID > s.MaxRequestID {
			s.MaxRequestID = r.RequestID
		}
		if s.Oldest.IsZero() || r.SendTime.Before(s.Oldest) {
			s.Oldest = r.SendTime
		}
		if r.SendTime.After(s.Newest) {
			s.Newest = r.SendTime
		}
		if r.ResendCount > s.MaxResends {
			s.MaxResends = r.ResendCount
		}
		s.PayloadBytes += int64(len(r.Payload))

		if withEntries {
			s.Entries = append(s.Entries, decodeRecord(r))
		}
	}
	return s
}

func decodeRecord(r domain.AuditRecord) inspectRecord {
	out := inspectRecord{RequestID: r.RequestID, SendTime: r.SendTime, ResendCount: r.ResendCount}
	body, err := codec.Unframe(r.Payload)
	if err == nil {
		var req codec.AuditRequest
		if req, err = codec.DecodeRequest(body); err == nil {
			out.Header = &req.Header
			out.Items = req.Items
		}
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
