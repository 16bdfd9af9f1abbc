package main

import (
	"fmt"

	"github.com/maxpromer/sensors/cmd/sensors/console"
	"github.com/maxpromer/sensors/environment"
)

// formatReading renders the state of one barometer on a single line.
func formatReading(b environment.Barometer) string {
	switch {
	case b.Failed():
		return fmt.Sprintf("%s %s %s", console.PictoStop, console.White(b.Name()), console.Red("not responding"))
	case !environment.HasReading(b):
		return fmt.Sprintf("%s %s %s", console.PictoGhost, console.White(b.Name()), console.Yellow("initializing"))
	}
	return fmt.Sprintf("%s %s  %s %s  %s %s",
		console.Green(b.Name()),
		console.PictoThermometer, console.White(fmt.Sprintf("%.2f°C", b.Temperature())),
		console.PictoPressure, console.White(fmt.Sprintf("%.2f hPa", b.Pressure()/100)))
}
