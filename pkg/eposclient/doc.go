// Package eposclient submits print jobs to an ePOS print service, such as
// an Epson TM-series printer or the proxy in this repository.
//
// Jobs are built as epos-print documents and posted to the service CGI
// endpoint. The package rasterizes regular Go images into the one-bit
// format thermal printers expect.
//
// Basic usage:
//
//	client := eposclient.New("https://192.168.1.10:8000", eposclient.WithInsecureTLS())
//
//	// Print an image file
//	result, err := client.PrintFile(ctx, "/path/to/receipt.png")
//
//	// Open the cash drawer
//	result, err := client.KickDrawer(ctx, 0)
//
// For full control, assemble a Document directly and Submit it.
package eposclient
