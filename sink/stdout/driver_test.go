package stdout

import (
	"testing"

	"cloud.google.com/go/dlp/apiv2/dlppb"
)

func TestConfigure_RejectsWrongType(t *testing.T) {
	d := &driver{}
	if err := d.Configure("not a config"); err == nil {
		t.Fatal("expected type error")
	}
	if err := d.Configure(Config{PrintRows: true}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
}

func TestRenderRow(t *testing.T) {
	row := &dlppb.Table_Row{Values: []*dlppb.Value{
		{Type: &dlppb.Value_StringValue{StringValue: "x1"}},
		{Type: &dlppb.Value_StringValue{StringValue: "y1"}},
	}}
	if got := renderRow(row); got != "x1|y1" {
		t.Fatalf("unexpected rendering: %q", got)
	}
}
