package environment

import (
	"context"
	"errors"
	"testing"
)

func TestMockBarometer_StaticValues(t *testing.T) {
	sensor := NewMockBarometer("static", func(ctx context.Context) (float64, float64, error) {
		return 21.5, 101325, nil
	})
	sensor.Process(context.Background(), nil)

	if !sensor.Initialized() || sensor.Failed() {
		t.Fatalf("expected initialized and not failed, got %v/%v", sensor.Initialized(), sensor.Failed())
	}
	if sensor.Temperature() != 21.5 {
		t.Errorf("expected temperature 21.5, got %f", sensor.Temperature())
	}
	if sensor.Pressure() != 101325 {
		t.Errorf("expected pressure 101325, got %f", sensor.Pressure())
	}
	if sensor.Name() != "static" {
		t.Errorf("expected name static, got %s", sensor.Name())
	}
}

func TestMockBarometer_Failure(t *testing.T) {
	fail := false
	sensor := NewMockBarometer("flaky", func(ctx context.Context) (float64, float64, error) {
		if fail {
			return 0, 0, errors.New("sensor offline")
		}
		return 20, 100000, nil
	})
	ctx := context.Background()

	sensor.Process(ctx, nil)
	fail = true
	sensor.Process(ctx, nil)

	if !sensor.Failed() || sensor.Initialized() {
		t.Fatalf("expected failed and not initialized, got %v/%v", sensor.Failed(), sensor.Initialized())
	}
	if sensor.Temperature() != 0 || sensor.Pressure() != 0 {
		t.Errorf("expected zeroed readings, got %f/%f", sensor.Temperature(), sensor.Pressure())
	}

	fail = false
	sensor.Process(ctx, nil)
	if sensor.Failed() || !sensor.Initialized() {
		t.Errorf("expected recovery, got failed=%v initialized=%v", sensor.Failed(), sensor.Initialized())
	}
	if sensor.Calls() != 3 {
		t.Errorf("expected 3 calls, got %d", sensor.Calls())
	}
}

func TestMockBarometer_Properties(t *testing.T) {
	sensor := NewMockBarometer("props", func(ctx context.Context) (float64, float64, error) {
		return 18.25, 99850.5, nil
	})
	sensor.Process(context.Background(), nil)

	props := sensor.Properties()
	if props.Count() != 2 {
		t.Fatalf("expected 2 properties, got %d", props.Count())
	}
	value, err := props.ReadValue(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "18.25" {
		t.Errorf("expected 18.25, got %s", value)
	}
	value, err = props.ReadValue(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "99850.50" {
		t.Errorf("expected 99850.50, got %s", value)
	}
	if err := props.WriteValue(0, "1"); err == nil {
		t.Error("expected error writing a read-only property")
	}
}
