// Command gen writes testdata/events.parquet, a small jet sample for
// manual CLI runs.
package main

import (
	"log"
	"math/rand/v2"
	"os"

	parquet "github.com/parquet-go/parquet-go"
)

type Event struct {
	Run     int64     `parquet:"run"`
	JetPt   []float64 `parquet:"jet_pt"`
	Weights float64   `parquet:"weights"`
}

func main() {
	f, err := os.Create("testdata/events.parquet")
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	rng := rand.New(rand.NewPCG(1, 0))
	w := parquet.NewGenericWriter[Event](f)
	batch := make([]Event, 0, 128)
	for i := range 1000 {
		jets := make([]float64, rng.IntN(8))
		for j := range jets {
			// falling spectrum above 20 GeV
			jets[j] = 20 + rng.ExpFloat64()*40
		}
		batch = append(batch, Event{Run: int64(i / 100), JetPt: jets, Weights: 0.5 + rng.Float64()})
		if len(batch) == cap(batch) {
			if _, err := w.Write(batch); err != nil {
				log.Fatal(err)
			}
			batch = batch[:0]
		}
	}
	if _, err := w.Write(batch); err != nil {
		log.Fatal(err)
	}
	if err := w.Close(); err != nil {
		log.Fatal(err)
	}
}
