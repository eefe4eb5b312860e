package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// loadEnv pulls a local .env into the process environment when one exists.
// Deployments set real env vars, so a missing file is not an error.
func loadEnv() {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}
}

var scoringWeightEnvVars = [4]string{
	"SCORING_WEIGHT_TAG_MATCHES",
	"SCORING_WEIGHT_RECENCY",
	"SCORING_WEIGHT_MUTUAL_INTEREST",
	"SCORING_WEIGHT_AUTHOR_BOOST",
}

// scoringWeightsFromEnv reads the deployment-level weight override. The
// override is all-or-nothing: either all four SCORING_WEIGHT_* variables are
// set, or none of them is and the compiled defaults apply. A partial set is
// a startup error rather than a silently half-applied config.
func scoringWeightsFromEnv() (*ScoringWeights, error) {
	var vals [4]float64
	set := 0
	for i, name := range scoringWeightEnvVars {
		raw := os.Getenv(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid number %q", name, raw)
		}
		if v <= 0 {
			return nil, fmt.Errorf("%s: weight must be positive, got %v", name, v)
		}
		vals[i] = v
		set++
	}
	if set == 0 {
		return nil, nil
	}
	if set != len(scoringWeightEnvVars) {
		return nil, fmt.Errorf("scoring weights are all-or-nothing: %d of %d set", set, len(scoringWeightEnvVars))
	}
	return &ScoringWeights{
		TagMatches:          vals[0],
		RecencyScore:        vals[1],
		MutualInterestBoost: vals[2],
		AuthorBoost:         vals[3],
	}, nil
}
