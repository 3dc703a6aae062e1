package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetupStdout(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := Setup(Config{ServiceName: "pocketpilot-test", StdoutTraces: true, Output: &buf})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "graph.run")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"Name":"graph.run"`) {
		t.Fatalf("span not exported:\n%s", out)
	}
	if !strings.Contains(out, "pocketpilot-test") {
		t.Fatalf("service name missing:\n%s", out)
	}
}

func TestSetupDisabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	shutdown, err := Setup(Config{})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if otel.GetTracerProvider() != prev {
		t.Fatal("disabled setup replaced the tracer provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
