package main

import "context"

func createSystray(ctx context.Context, stop context.CancelFunc, openBrowser bool) {
	// just open the browser UI on startup:
	if openBrowser {
		openWebUI()
	}
	// block the main goroutine until a signal arrives:
	<-ctx.Done()
}
