package authflow

import (
	"os/exec"
	"runtime"
)

// openBrowser launches the system default browser on the consent URL.
// Failures are not fatal; the caller logs the URL so the user can open
// it by hand.
func openBrowser(target string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32.exe", "url.dll,FileProtocolHandler", target)
	case "darwin":
		cmd = exec.Command("open", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}

	return cmd.Start()
}
