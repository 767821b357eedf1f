package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"ngm-go/internal/service/ngram"

	"github.com/cheggaaa/pb/v3"
	"go.uber.org/zap"
)

// batchSize is the number of lines passed to each Update call while training
const batchSize = 1000

func main() {
	defaults := ngram.DefaultParams()
	var trainPath = flag.String("train", "", "Training file, one text per line")
	var scorePath = flag.String("score", "", "File to score, one text per line")
	var n = flag.Int("n", defaults.N, "N-gram order")
	var alpha = flag.Float64("alpha", defaults.Alpha, "Pseudo-count for observed contexts")
	var unseenAlpha = flag.Float64("unseen-alpha", defaults.UnseenAlpha, "Pseudo-count for unseen contexts")
	var normalise = flag.Bool("normalise", defaults.NormaliseLength, "Divide each score by the number of tokens")
	var threads = flag.Int("threads", 1, "Number of scoring workers")
	var modelDir = flag.String("model-dir", "./ngram_models", "Directory for saved models")
	var saveName = flag.String("save", "", "Save the trained model under this name")
	var loadName = flag.String("load", "", "Load a saved model instead of starting empty")
	var verbose = flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			log.Fatal("Failed to initialize logger:", err)
		}
	}
	defer logger.Sync()

	persistence, err := ngram.NewNGramPersistence(*modelDir, logger)
	if err != nil {
		log.Fatalf("Failed to open model directory: %v", err)
	}

	var model *ngram.NgramModel
	if *loadName != "" {
		model, err = persistence.LoadModel(*loadName)
	} else {
		model, err = ngram.NewNgramModel(ngram.Params{
			N:               *n,
			Alpha:           *alpha,
			UnseenAlpha:     *unseenAlpha,
			NormaliseLength: *normalise,
		})
	}
	if err != nil {
		log.Fatalf("Failed to create model: %v", err)
	}

	if *trainPath != "" {
		texts, err := readLines(*trainPath)
		if err != nil {
			log.Fatalf("Failed to read training file: %v", err)
		}
		train(model, texts)
		stats := model.Stats()
		logger.Info("Trained model",
			zap.Int("texts", len(texts)),
			zap.Int("vocabulary_size", stats.VocabularySize),
			zap.Int("ngram_types", stats.NGramCount))
	}

	if *saveName != "" {
		if err := persistence.SaveModel(model, *saveName); err != nil {
			log.Fatalf("Failed to save model: %v", err)
		}
	}

	if *scorePath != "" {
		texts, err := readLines(*scorePath)
		if err != nil {
			log.Fatalf("Failed to read score file: %v", err)
		}
		scores, err := model.Lpmf(texts, *threads)
		if err != nil {
			log.Fatalf("Failed to score texts: %v", err)
		}
		w := bufio.NewWriter(os.Stdout)
		for _, score := range scores {
			fmt.Fprintln(w, score)
		}
		if err := w.Flush(); err != nil {
			log.Fatalf("Failed to write scores: %v", err)
		}
	}
}

func train(model *ngram.NgramModel, texts []string) {
	bar := pb.New(len(texts)).SetWriter(os.Stderr).Start()
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		model.Update(texts[start:end])
		bar.Add(end - start)
	}
	bar.Finish()
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
