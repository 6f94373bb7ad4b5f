package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const windowsFontsKey = `HKCU:\Software\Microsoft\Windows NT\CurrentVersion\Fonts`

type windowsPlatform struct {
	notifier *commandNotifier
}

func newWindowsPlatform(o options) Platform {
	return &windowsPlatform{
		notifier: &commandNotifier{
			platform: "windows",
			runner:   o.runner,
			timeout:  o.timeout,
			commands: windowsCommands,
		},
	}
}

func (p *windowsPlatform) Name() string {
	return "windows"
}

func (p *windowsPlatform) FontPaths() (FontPaths, error) {
	winDir := os.Getenv("WINDIR")
	if winDir == "" {
		return FontPaths{}, fmt.Errorf("getting system font directory: WINDIR is not set")
	}
	localAppData := os.Getenv("LOCALAPPDATA")
	if localAppData == "" {
		return FontPaths{}, fmt.Errorf("getting user font directory: LOCALAPPDATA is not set")
	}

	paths := FontPaths{
		SystemDir: filepath.Join(winDir, "Fonts"),
		UserDir:   filepath.Join(localAppData, "Microsoft", "Windows", "Fonts"),
	}
	// A font installed machine-wide is just as active as a per-user one.
	paths.Consult = []string{paths.UserDir, paths.SystemDir}
	return paths, nil
}

func (p *windowsPlatform) Notifier() Notifier {
	return p.notifier
}

func windowsCommands(op, activePath string) ([]command, error) {
	var script string
	switch op {
	case OpActivated:
		script = windowsActivateScript(activePath)
	case OpDeactivated:
		script = windowsDeactivateScript(activePath)
	default:
		return nil, fmt.Errorf("unknown notification %q", op)
	}
	return []command{{
		name:  "powershell",
		args:  []string{"-NoProfile", "-NonInteractive", "-Command", script},
		label: fmt.Sprintf("powershell (%s %s)", op, filepath.Base(activePath)),
	}}, nil
}

const windowsAPISignature = `$sig = @'
[DllImport("gdi32.dll")] public static extern int AddFontResource(string f);
[DllImport("gdi32.dll")] public static extern int RemoveFontResource(string f);
[DllImport("user32.dll")] public static extern IntPtr SendMessage(IntPtr h, uint m, IntPtr w, IntPtr l);
'@
Add-Type -MemberDefinition $sig -Name FontAPI -Namespace FontActivator
`

func windowsActivateScript(activePath string) string {
	var b strings.Builder
	b.WriteString("$ErrorActionPreference = 'Stop'\n")
	b.WriteString(windowsAPISignature)
	fmt.Fprintf(&b, "$path = %s\n", psQuote(activePath))
	fmt.Fprintf(&b, "New-ItemProperty -Path %s -Name %s -PropertyType String -Value $path -Force | Out-Null\n",
		psQuote(windowsFontsKey), psQuote(registryValueName(activePath)))
	b.WriteString("if ([FontActivator.FontAPI]::AddFontResource($path) -eq 0) { throw 'AddFontResource failed' }\n")
	b.WriteString("[FontActivator.FontAPI]::SendMessage([IntPtr]0xffff, 0x1D, [IntPtr]::Zero, [IntPtr]::Zero) | Out-Null\n")
	return b.String()
}

func windowsDeactivateScript(activePath string) string {
	var b strings.Builder
	b.WriteString("$ErrorActionPreference = 'Stop'\n")
	b.WriteString(windowsAPISignature)
	fmt.Fprintf(&b, "$path = %s\n", psQuote(activePath))
	fmt.Fprintf(&b, "Remove-ItemProperty -Path %s -Name %s -Force -ErrorAction SilentlyContinue\n",
		psQuote(windowsFontsKey), psQuote(registryValueName(activePath)))
	b.WriteString("[FontActivator.FontAPI]::RemoveFontResource($path) | Out-Null\n")
	b.WriteString("[FontActivator.FontAPI]::SendMessage([IntPtr]0xffff, 0x1D, [IntPtr]::Zero, [IntPtr]::Zero) | Out-Null\n")
	return b.String()
}

// registryValueName follows the "<face> (TrueType)" convention Windows uses
// for entries under the Fonts key.
func registryValueName(activePath string) string {
	base := filepath.Base(activePath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.EqualFold(filepath.Ext(base), ".otf") {
		return name + " (OpenType)"
	}
	return name + " (TrueType)"
}

// psQuote renders s as a single-quoted PowerShell literal.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
