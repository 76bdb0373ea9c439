// vledctl drives a running relay from the terminal. Each input line is either
// a frequency in Hz or a run of A/D keys ("aaa" steps up three times).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	"vled/client"
)

var (
	addr  = flag.String("addr", "127.0.0.1:3000", "relay address (host:port or ws:// URL)")
	freq  = flag.Int("freq", 0, "send this frequency, then exit")
	quiet = flag.Bool("quiet", false, "do not print readings")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	c, err := client.Dial(ctx, client.URL(*addr), printMessage)
	cancel()
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	if *freq != 0 {
		if err := c.SendFrequency(*freq); err != nil {
			log.Fatal(err)
		}
		// give the relay a moment to answer with its status:
		time.Sleep(250 * time.Millisecond)
		return
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-c.Done():
			if err := c.Err(); err != nil {
				log.Fatal(err)
			}
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := send(c, line); err != nil {
				log.Println(err)
			}
		}
	}
}

func send(c *client.Client, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if hz, err := strconv.Atoi(line); err == nil {
		return c.SendFrequency(hz)
	}
	for _, r := range line {
		if err := c.SendKey(string(r)); err != nil {
			return err
		}
	}
	return nil
}

func printMessage(text string) {
	if _, err := strconv.ParseUint(text, 10, 32); err == nil {
		if !*quiet {
			fmt.Printf("reading %s\n", text)
		}
		return
	}
	fmt.Println(text)
}
