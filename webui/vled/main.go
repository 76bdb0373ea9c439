package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/skratchdot/open-golang/open"
	"log"
	"os"
	"os/signal"
	"syscall"
	"vled/capture"
	"vled/config"
	"vled/frequency"
	"vled/gpioled"
	"vled/register"
	"vled/relay"
	"vled/util"
	"vled/webui"
)

// include these register drivers:
import (
	_ "vled/register/devmem"
	_ "vled/register/mock"
	_ "vled/register/replay"
	_ "vled/register/rwmem"
	_ "vled/register/sniffer"
	_ "vled/register/uart"
)

var (
	configPath  = flag.String("config", "", "YAML config file (defaults apply when empty)")
	listDrivers = flag.Bool("drivers", false, "list register drivers and exit")

	browserUrl string // full URL that is sent to browser
	logPath    string
)

func main() {
	flag.Parse()

	if *listDrivers {
		printDrivers()
		return
	}

	logPath = util.SetupLogging("vled")
	defer func() {
		if err := recover(); err != nil {
			util.LogPanic(err)
			panic(err)
		}
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	browserUrl = cfg.BrowserURL()

	reader, writer, err := openQueues(&cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeQueues(reader, writer)

	r, err := relay.New(relayConfig(&cfg), reader, writer)
	if err != nil {
		log.Fatal(err)
	}

	// construct the web server and wire it to the relay both ways:
	webServer := webui.NewWebServer(cfg.Web.Listen, cfg.Web.Greeting)
	webServer.ProvideMessageHandler(r)
	webServer.ProvideStatusProvider(r)
	r.Subscribe(webServer)

	if cfg.GPIO.Enable {
		led, err := gpioled.Open(cfg.GPIO.Config)
		if err != nil {
			log.Printf("gpio: %v\n", err)
		} else {
			r.Subscribe(led)
			defer led.Close()
		}
	}

	if cfg.Record.Enable {
		w, err := capture.Create(cfg.Record.Path)
		if err != nil {
			log.Fatal(err)
		}
		rec := capture.NewRecorder(w)
		r.Subscribe(rec)
		defer func() {
			if err := rec.Close(); err != nil {
				log.Printf("capture: %v\n", err)
			}
		}()
		log.Printf("recording readings to '%s'\n", cfg.Record.Path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// start the web server:
	go func() {
		if err := webServer.Serve(ctx); err != nil {
			log.Printf("%v\n", err)
			stop()
		}
	}()

	// start relaying readings:
	go func() {
		if err := r.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("%v\n", err)
			stop()
		}
	}()

	// start up a systray app (or just open web UI):
	createSystray(ctx, stop, cfg.Web.OpenBrowser)
	log.Println("shutting down")
}

func relayConfig(cfg *config.Config) relay.Config {
	return relay.Config{
		ReadAddress:  uint32(cfg.Registers.Read),
		WriteAddress: uint32(cfg.Registers.Write),
		PollInterval: cfg.PollInterval,
		Range:        cfg.Frequency.Range(),
		Initial:      cfg.Frequency.InitialValue(),
		Scale:        frequency.Scale(cfg.Frequency.CounterScale),
	}
}

// openQueues opens the reading device, and the writing device when it is
// configured separately.
func openQueues(cfg *config.Config) (reader, writer register.Queue, err error) {
	reader, err = register.Open(cfg.Device.Driver, cfg.Device.Target)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.Device.Driver, err)
	}
	log.Printf("reading from %s %q\n", cfg.Device.Driver, cfg.Device.Name)

	if cfg.Writer == nil {
		return reader, reader, nil
	}

	wd := cfg.WriterDevice()
	writer, err = register.Open(wd.Driver, wd.Target)
	if err != nil {
		_ = reader.Close()
		return nil, nil, fmt.Errorf("open writer %s: %w", wd.Driver, err)
	}
	log.Printf("writing to %s %q\n", wd.Driver, wd.Name)
	return reader, writer, nil
}

func closeQueues(reader, writer register.Queue) {
	if err := reader.Close(); err != nil {
		log.Printf("%v\n", err)
	}
	if writer != reader {
		if err := writer.Close(); err != nil {
			log.Printf("%v\n", err)
		}
	}
}

func printDrivers() {
	for _, name := range register.Drivers() {
		d, _ := register.DriverByName(name)
		fmt.Printf("%-8s %s: %s\n", name, d.DisplayName(), d.DisplayDescription())
	}
}

func openWebUI() {
	log.Printf("opening %s\n", browserUrl)
	err := open.Start(browserUrl)
	if err != nil {
		log.Println(err)
	}
}
