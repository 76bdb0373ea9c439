package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	"vled/config"
	"vled/register"
	"vled/sniffd"
	"vled/util"
)

// include these register drivers:
import (
	_ "vled/register/devmem"
	_ "vled/register/mock"
	_ "vled/register/rwmem"
	_ "vled/register/uart"
)

var (
	configPath = flag.String("config", "", "YAML config file (defaults apply when empty)")
	listen     = flag.String("listen", "", "address to serve readings on (overrides sniffd.listen)")
	driver     = flag.String("driver", "", "register driver to read from (overrides sniffd.device.driver)")
	target     = flag.String("target", "", "driver target (overrides sniffd.device.target)")
	address    = flag.String("address", "", "register address to read (overrides sniffd.address)")
)

func main() {
	flag.Parse()

	util.SetupLogging("vledsniff")
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
	sc := cfg.Sniffd
	sc.Listen = util.OrElse(*listen, sc.Listen)
	if *driver != "" {
		sc.Device = config.DeviceConfig{Driver: *driver}
	}
	sc.Device.Name = util.OrElse(*target, sc.Device.Name)
	if *address != "" {
		n, err := strconv.ParseUint(*address, 0, 32)
		if err != nil {
			log.Fatalf("-address %q: %v", *address, err)
		}
		sc.Address = config.Address(n)
	}

	q, err := register.Open(sc.Device.Driver, sc.Device.Target)
	if err != nil {
		log.Fatalf("open %s %q: %v", sc.Device.Driver, sc.Device.Name, err)
	}
	defer q.Close()
	log.Printf("reading %s from %s %q every %v\n", sc.Address, sc.Device.Driver, sc.Device.Name, sc.Interval)

	srv, err := sniffd.NewServer(sniffd.Config{
		Addr:        sc.Listen,
		Interval:    sc.Interval,
		MaxReadings: sc.MaxReadings,
	}, sniffd.QueueSource{Queue: q, Address: uint32(sc.Address)})
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go logStats(ctx, srv)

	if err := srv.Serve(ctx); err != nil {
		log.Fatal(err)
	}
	log.Println("shutting down")
}

func logStats(ctx context.Context, srv *sniffd.Server) {
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		snap := srv.Snapshot()
		if snap.Readings != last {
			log.Printf("sniffd: %d connections, %d readings sent\n", snap.Connections, snap.Readings)
			last = snap.Readings
		}
	}
}
