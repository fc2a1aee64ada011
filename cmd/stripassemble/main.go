// Command stripassemble fetches the 50 strip fragments of a sharded PNG from
// an HTTP endpoint and reassembles them into a single valid PNG file.
package main

import (
	"compress/zlib"
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/ece252-project/stripassemble/internal/arena"
	"github.com/ece252-project/stripassemble/internal/codec"
	"github.com/ece252-project/stripassemble/internal/fetch"
	"github.com/ece252-project/stripassemble/internal/pipeline"
)

const defaultEndpoint = "http://ece252-1.uwaterloo.ca:2530/image"

func main() {
	var (
		bufferSize    int
		producers     int
		consumers     int
		consumerDelay int
		imageNum      int
		output        string
		endpoint      string
	)

	flag.IntVar(&bufferSize, "b", 20, "ring buffer size, 1-50")
	flag.IntVar(&producers, "p", 10, "number of producer threads, 1-20")
	flag.IntVar(&consumers, "c", 10, "number of consumer threads, 1-20")
	flag.IntVar(&consumerDelay, "x", 0, "consumer delay in milliseconds, 0-1000")
	flag.IntVar(&imageNum, "n", 1, "image number, 1-3")
	flag.StringVar(&output, "o", "all.png", "output file name")
	flag.StringVar(&endpoint, "endpoint", defaultEndpoint, "strip-fetch endpoint URL")
	flag.Parse()

	cfg := pipeline.Config{
		BufferSize:     bufferSize,
		Producers:      producers,
		Consumers:      consumers,
		ConsumerDelay:  time.Duration(consumerDelay) * time.Millisecond,
		ImageNum:       imageNum,
		TotalFragments: pipeline.DefaultTotalFragments,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	client := fetch.NewClient(endpoint)
	co := pipeline.New(cfg, client)

	start := time.Now()
	report, err := co.Run(context.Background())
	if err != nil {
		log.Fatalf("assembly failed: %v", err)
	}
	log.Printf("produced %d consumed %d in %v", report.Produced, report.Consumed, time.Since(start))
	if len(report.FragmentsFailed) > 0 {
		log.Printf("warning: %d fragment(s) could not be fetched: %v", len(report.FragmentsFailed), report.FragmentsFailed)
	}

	totalRows := arena.StripRows * cfg.TotalFragments
	deflated, err := codec.Deflate(co.Arena().Bytes(), zlib.DefaultCompression)
	if err != nil {
		log.Fatalf("deflating assembled raster: %v", err)
	}

	png := codec.New(arena.StripWidth, uint32(totalRows), 8, codec.ColorTruecolorAlpha)
	png.IDAT = deflated

	out := png.Write()
	if err := os.WriteFile(output, out, 0644); err != nil {
		log.Fatalf("writing %s: %v", output, err)
	}
	log.Printf("wrote %s (%d bytes)", output, len(out))
}
