//go:build !linux

package main

import (
	"context"
	"github.com/getlantern/systray"
	"github.com/skratchdot/open-golang/open"
	"log"
)

func createSystray(ctx context.Context, stop context.CancelFunc, openBrowser bool) {
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()

	// Start up a systray:
	systray.Run(func() { trayStart(stop, openBrowser) }, trayExit)
}

func trayExit() {
	log.Println("tray: finished quitting")
}

func trayStart(stop context.CancelFunc, openBrowser bool) {
	// Set up the systray:
	systray.SetTitle("VLED")
	systray.SetTooltip("Lab 4 - Virtual LED relay")
	mOpenWeb := systray.AddMenuItem("Web UI", "Opens the web UI in the default browser")
	mLog := systray.AddMenuItem("Show Log", "Opens the log file")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit")

	if logPath == "" {
		mLog.Disable()
	}

	if openBrowser {
		openWebUI()
	}

	// Menu item click handler:
	go func() {
		for {
			select {
			case <-mOpenWeb.ClickedCh:
				openWebUI()
			case <-mLog.ClickedCh:
				openLog()
			case <-mQuit.ClickedCh:
				log.Println("tray: requesting quit")
				stop()
				return
			}
		}
	}()
}

func openLog() {
	if err := open.Start(logPath); err != nil {
		log.Println(err)
	}
}
