package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/priont/epos-bridge/pkg/eposclient"
)

const defaultServerURL = "http://localhost:8000"

func main() {
	var (
		serverURL string
		insecure  bool
		width     int
		threshold int
		deviceID  string
	)

	flag.StringVar(&serverURL, "server", defaultServerURL, "Proxy URL")
	flag.StringVar(&serverURL, "s", defaultServerURL, "Proxy URL (short)")
	flag.BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification")
	flag.BoolVar(&insecure, "k", false, "Skip TLS certificate verification (short)")
	flag.IntVar(&width, "width", 576, "Paper width in dots")
	flag.IntVar(&threshold, "threshold", 128, "Gray cutoff below which pixels print black")
	flag.StringVar(&deviceID, "devid", "", "Device ID query parameter")
	flag.Parse()

	if flag.NArg() == 0 {
		printUsage()
		os.Exit(1)
	}

	opts := []eposclient.Option{
		eposclient.WithPaperWidth(width),
		eposclient.WithThreshold(uint8(threshold)),
	}
	if insecure {
		opts = append(opts, eposclient.WithInsecureTLS())
	}
	if deviceID != "" {
		opts = append(opts, eposclient.WithDeviceID(deviceID))
	}
	client := eposclient.New(serverURL, opts...)

	ctx := context.Background()
	args := flag.Args()

	var (
		result *eposclient.Result
		err    error
	)

	switch args[0] {
	case "print":
		if len(args) < 2 {
			fatalf("print needs an image path")
		}
		result, err = client.PrintFile(ctx, args[1])

	case "drawer":
		pin := 0
		if len(args) > 1 {
			pin, err = strconv.Atoi(args[1])
			if err != nil || pin < 0 || pin > 1 {
				fatalf("drawer pin must be 0 or 1, got %q", args[1])
			}
		}
		result, err = client.KickDrawer(ctx, pin)

	case "testpage":
		result, err = client.PrintImage(ctx, eposclient.TestPage(width))

	case "qr":
		if len(args) < 2 {
			fatalf("qr needs a value to encode")
		}
		img, qrErr := eposclient.QRCode(args[1], width/2)
		if qrErr != nil {
			fatalf("%v", qrErr)
		}
		result, err = client.PrintImage(ctx, img)

	case "barcode":
		if len(args) < 3 {
			fatalf("barcode needs a format and a value")
		}
		img, barErr := eposclient.Barcode(args[1], args[2], width-40, 120)
		if barErr != nil {
			fatalf("%v", barErr)
		}
		result, err = client.PrintImage(ctx, img)

	case "status":
		if err := checkStatus(serverURL, insecure); err != nil {
			fatalf("%v", err)
		}
		return

	case "help":
		printUsage()
		return

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Printed (status %s)\n", result.Status)
}

func checkStatus(serverURL string, insecure bool) error {
	httpClient := &http.Client{Timeout: 10 * time.Second}
	if insecure {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	resp, err := httpClient.Get(strings.TrimRight(serverURL, "/") + "/health")
	if err != nil {
		return fmt.Errorf("failed to reach proxy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxy answered status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ePOS printer proxy CLI

Usage:
  epos-cli [flags] <command>

Flags:
  -s, -server <url>    Proxy URL (default: %s)
  -k, -insecure        Skip TLS certificate verification
  -width <px>          Paper width in dots (default: 576)
  -threshold <n>       Gray cutoff 0-255 for black pixels (default: 128)
  -devid <id>          Device ID query parameter

Commands:
  print <image-path>
    Rasterize a PNG or JPEG file and print it

  drawer [pin]
    Kick the cash drawer on pin 0 or 1 (default: 0)

  testpage
    Print a diagnostic test page

  qr <value>
    Print a QR code

  barcode <format> <value>
    Print a linear barcode (CODE128, CODE39, EAN13, EAN8)

  status
    Check the proxy health endpoint

  help
    Show this message

Examples:
  epos-cli testpage
  epos-cli print ./receipt.png
  epos-cli drawer
  epos-cli qr "https://example.com/receipt/1234"
  epos-cli barcode CODE128 "EPOS-1234"
  epos-cli -s https://192.168.1.10:8000 -k testpage

`, defaultServerURL)
}
