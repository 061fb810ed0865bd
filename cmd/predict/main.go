package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"YoloPipeline/pkg/detector"
	"YoloPipeline/pkg/log"
	"YoloPipeline/pkg/utils"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
)

func main() {
	image := flag.String("image", "", "path to the image to run detection on")
	timeout := flag.Duration("timeout", 60*time.Second, "inference timeout")
	flag.Parse()

	logger := log.NewLogger("predict")
	if err := godotenv.Load(); err != nil {
		logger.Debugf("No .env file loaded: %v", err)
	}

	if *image == "" {
		fmt.Fprintln(os.Stderr, "usage: predict --image <path>")
		os.Exit(2)
	}

	data, err := os.ReadFile(*image)
	if err != nil {
		logger.Fatalf("Failed to read image: %v", err)
	}

	u := utils.New()
	if _, err := u.DetectImageType(data); err != nil {
		logger.Fatalf("Refusing to run detection: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	d, err := detector.New(ctx, logger, u)
	if err != nil {
		logger.Fatalf("Failed to create detector: %v", err)
	}
	defer d.Close()

	result, err := d.Predict(ctx, data, filepath.Base(*image))
	if err != nil {
		logger.Fatalf("Inference failed: %v", err)
	}

	out, err := jsoniter.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(out))
}
