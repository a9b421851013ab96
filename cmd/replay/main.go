// Detection replay - feeds a recorded detection log through the full
// tracking pipeline against a mock driver and prints the servo command
// trace. Useful for tuning gains against footage of a real session
// without touching the rig.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Group6Cameo/go-cameo/internal/log"

	"github.com/Group6Cameo/go-cameo/pkg/actuator"
	"github.com/Group6Cameo/go-cameo/pkg/manual"
	"github.com/Group6Cameo/go-cameo/pkg/tracking"
	"github.com/Group6Cameo/go-cameo/pkg/tracking/feed"
)

// settle is how long the replay loop waits for the tracker goroutine to
// drain a pushed record before advancing the simulated clock.
const settle = 2 * time.Millisecond

func main() {
	csvPath := flag.String("csv", "tmp/face_info_log.csv", "Recorded detection log")
	configPath := flag.String("config", "", "Tracking config file (JSON); defaults apply when empty")
	target := flag.String("target", "", "Manual target held for the whole replay (default: the default subject)")
	trace := flag.Bool("trace", false, "Print every servo command")
	flag.Parse()
	log.Init("info")

	cfg := tracking.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = tracking.LoadConfig(*configPath)
		if err != nil {
			log.Fatal("configuration rejected", "path", *configPath, "error", err)
		}
	}

	records, err := feed.ReadAll(*csvPath)
	if err != nil {
		log.Fatal("detection log", "error", err)
	}
	if len(records) == 0 {
		log.Fatal("detection log holds no usable records", "path", *csvPath)
	}

	id := *target
	if id == "" {
		id = cfg.DefaultSubject
	}

	fmt.Printf("▶ Replaying %s: %d records, target %q\n\n", *csvPath, len(records), id)

	source := feed.NewChannelSource(8)
	driver := actuator.NewMock()
	tracker := tracking.New(cfg, source, manual.NewStatic(id), driver)
	mock := clock.NewMock()
	tracker.SetClock(mock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tracker.Run(ctx) }()

	// The rest pose is commanded before the loop starts ticking.
	waitForCommands(driver, 3)

	// One simulated control tick per record. The real sleeps give the
	// tracker goroutine a chance to drain the source between ticks.
	for _, rec := range records {
		source.Push(rec)
		time.Sleep(settle)
		mock.Add(cfg.ActuateInterval)
		time.Sleep(settle)
	}

	cancel()
	if err := <-done; err != nil {
		log.Fatal("tracker", "error", err)
	}

	report(tracker, driver, *trace)
}

// waitForCommands blocks until the driver has recorded at least n
// commands, or dies after two seconds.
func waitForCommands(driver *actuator.Mock, n int) {
	deadline := time.Now().Add(2 * time.Second)
	for len(driver.Commands()) < n {
		if time.Now().After(deadline) {
			log.Fatal("tracker never homed the rig")
		}
		time.Sleep(time.Millisecond)
	}
}

func report(tracker *tracking.Tracker, driver *actuator.Mock, trace bool) {
	commands := driver.Commands()
	perAxis := map[actuator.Axis]int{}
	for _, cmd := range commands {
		perAxis[cmd.Axis]++
		if trace {
			fmt.Printf("  %-4s → %6.2f°\n", cmd.Axis, cmd.Degrees)
		}
	}
	if trace {
		fmt.Println()
	}

	st := tracker.Status()
	fmt.Printf("Commands: %d (tilt %d, pan %d, arm %d)\n",
		len(commands),
		perAxis[actuator.AxisTilt], perAxis[actuator.AxisPan], perAxis[actuator.AxisArm])
	fmt.Printf("Ticks: %d, active target at end: %s\n", st.Ticks, st.ActiveTarget)
	fmt.Printf("Final pose: tilt %.2f° pan %.2f° arm %.2f°\n",
		st.TiltAngle, st.PanAngle, st.ArmAngle)
}
