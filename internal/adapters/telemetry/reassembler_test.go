package telemetry

import (
	"errors"
	"testing"

	"github.com/okian/dpsbar/internal/domain/model"
)

func text(s string, final bool) model.Frame {
	return model.Frame{Data: []byte(s), Final: final, Kind: model.FrameText}
}

func TestReassembler(t *testing.T) {
	tests := []struct {
		name   string
		max    int
		frames []model.Frame
		want   []string
		errs   int
	}{
		{
			name:   "two fragments",
			frames: []model.Frame{text(`{"a":1`, false), text(`}`, true)},
			want:   []string{`{"a":1}`},
		},
		{
			name:   "single final frame",
			frames: []model.Frame{text(`{}`, true)},
			want:   []string{`{}`},
		},
		{
			name: "back to back messages",
			frames: []model.Frame{
				text(`[1`, false), text(`]`, true),
				text(`[2]`, true),
			},
			want: []string{`[1]`, `[2]`},
		},
		{
			name: "binary frames are ignored",
			frames: []model.Frame{
				{Data: []byte{0x01, 0x02}, Final: false, Kind: model.FrameOther},
				text(`ok`, true),
			},
			want: []string{`ok`},
		},
		{
			name: "final binary frame drops partial text",
			frames: []model.Frame{
				text(`part`, false),
				{Final: true, Kind: model.FrameOther},
				text(`whole`, true),
			},
			want: []string{`whole`},
		},
		{
			name: "oversized message is dropped",
			max:  4,
			frames: []model.Frame{
				text(`abc`, false), text(`def`, false), text(`g`, true),
				text(`ok`, true),
			},
			want: []string{`ok`},
			errs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReassembler(tt.max)
			var got []string
			errs := 0
			for _, f := range tt.frames {
				msg, ok, err := r.Push(f)
				if err != nil {
					if !errors.Is(err, ErrMessageTooLarge) {
						t.Fatalf("unexpected error: %v", err)
					}
					errs++
					continue
				}
				if ok {
					got = append(got, msg)
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("message %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
			if errs != tt.errs {
				t.Errorf("errors = %d, want %d", errs, tt.errs)
			}
			if r.Pending() != 0 {
				t.Errorf("expected empty buffer, %d bytes pending", r.Pending())
			}
		})
	}
}
