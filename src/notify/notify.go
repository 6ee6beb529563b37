package notify

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/gen2brain/beeep"
)

// Send delivers a desktop notification. Best effort only: any delivery
// failure is downgraded to a warning and never stops the download.
func Send(title, message string) {
	err := beeep.Notify(title, message, "")
	if err == nil {
		return
	}

	if runtime.GOOS == "linux" {
		if sendErr := notifySend(title, message); sendErr == nil {
			return
		}
	}

	fmt.Fprintf(os.Stderr, "warning: failed to send desktop notification: %v\n", err)
}

func notifySend(title, message string) error {
	cmd := exec.Command("notify-send", title, message)
	done := make(chan error, 1)

	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		cmd.Process.Kill()
		return fmt.Errorf("notify-send timed out")
	}
}
