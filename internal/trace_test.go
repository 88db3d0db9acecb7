package internal

import (
	"context"
	"errors"
	"testing"
)

func TestOTLPConfigClientOptions(t *testing.T) {
	testCases := []struct {
		cfg      OTLPConfig
		wantErr  bool
		wantOpts int
	}{
		{cfg: OTLPConfig{URL: "http://localhost:4318"}, wantOpts: 2},
		{cfg: OTLPConfig{URL: "https://otlp.example.com"}, wantOpts: 1},
		{cfg: OTLPConfig{URL: "https://otlp.example.com/", User: "u", Password: "p"}, wantOpts: 2},
		{cfg: OTLPConfig{URL: "https://otlp.example.com", User: "u"}, wantOpts: 1},
		{cfg: OTLPConfig{URL: "https://otlp.example.com/v1/traces"}, wantErr: true},
		{cfg: OTLPConfig{URL: "localhost"}, wantErr: true},
		{cfg: OTLPConfig{URL: "http://%zz"}, wantErr: true},
	}
	for i, tc := range testCases {
		opts, err := tc.cfg.clientOptions()
		if tc.wantErr {
			if err == nil {
				t.Errorf("Case %d/%d: %s accepted", i+1, len(testCases), tc.cfg.URL)
			}
			continue
		}
		if err != nil {
			t.Errorf("Case %d/%d: %s", i+1, len(testCases), err)
			continue
		}
		if len(opts) != tc.wantOpts {
			t.Errorf("Case %d/%d: got %d options want %d", i+1, len(testCases), len(opts), tc.wantOpts)
		}
	}
}

func TestSpanWithoutExporter(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test")
	if ctx == nil {
		t.Fatalf("nil context")
	}
	span.RecordError(nil)
	span.RecordError(errors.New("boom"))
	span.End()
}
