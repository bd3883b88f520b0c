package actions

import (
	"fmt"
	"strings"
)

// Each function returns the candidate command lines for an action in order
// of preference. The first word is the tool that has to be installed.

func volumeCommands(goos string, step int) [][]string {
	switch goos {
	case "darwin":
		script := fmt.Sprintf("set volume output volume ((output volume of (get volume settings)) + %d)", step)
		return [][]string{{"osascript", "-e", script}}
	case "windows":
		// Each volume key press moves the volume by two percent.
		key := 175
		if step < 0 {
			key = 174
		}
		return [][]string{powershell(sendKeys(key, abs(step)/2))}
	default:
		sign := "+"
		if step < 0 {
			sign = "-"
		}
		change := fmt.Sprintf("%d%%%s", abs(step), sign)
		return [][]string{
			{"pactl", "set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("%s%d%%", sign, abs(step))},
			{"wpctl", "set-volume", "@DEFAULT_AUDIO_SINK@", change},
			{"amixer", "-q", "sset", "Master", change},
		}
	}
}

func muteCommands(goos string) [][]string {
	switch goos {
	case "darwin":
		return [][]string{{"osascript", "-e", "set volume with output muted"}}
	case "windows":
		return [][]string{powershell(sendKeys(173, 1))}
	default:
		return [][]string{
			{"pactl", "set-sink-mute", "@DEFAULT_SINK@", "1"},
			{"wpctl", "set-mute", "@DEFAULT_AUDIO_SINK@", "1"},
			{"amixer", "-q", "sset", "Master", "mute"},
		}
	}
}

func minimizeCommands(goos string) [][]string {
	switch goos {
	case "darwin":
		script := `tell application "System Events" to set visible of every process whose visible is true and name is not "Finder" to false`
		return [][]string{{"osascript", "-e", script}}
	case "windows":
		return [][]string{powershell("(New-Object -ComObject Shell.Application).MinimizeAll()")}
	default:
		return [][]string{
			{"xdotool", "key", "super+d"},
			{"wmctrl", "-k", "on"},
		}
	}
}

func screenshotCommands(goos, path string) [][]string {
	switch goos {
	case "darwin":
		return [][]string{{"screencapture", "-x", path}}
	case "windows":
		script := "Add-Type -AssemblyName System.Windows.Forms, System.Drawing; " +
			"$b = [System.Windows.Forms.SystemInformation]::VirtualScreen; " +
			"$bmp = New-Object System.Drawing.Bitmap $b.Width, $b.Height; " +
			"$g = [System.Drawing.Graphics]::FromImage($bmp); " +
			"$g.CopyFromScreen($b.Left, $b.Top, 0, 0, $bmp.Size); " +
			"$bmp.Save(" + powershellQuote(path) + ", [System.Drawing.Imaging.ImageFormat]::Png)"
		return [][]string{powershell(script)}
	default:
		return [][]string{
			{"gnome-screenshot", "-f", path},
			{"grim", path},
			{"scrot", path},
			{"import", "-window", "root", path},
		}
	}
}

func powershell(script string) []string {
	return []string{"powershell", "-NoProfile", "-NonInteractive", "-Command", script}
}

func sendKeys(key, presses int) string {
	return fmt.Sprintf("$w = New-Object -ComObject WScript.Shell; 1..%d | ForEach-Object { $w.SendKeys([char]%d) }", max(presses, 1), key)
}

func powershellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
