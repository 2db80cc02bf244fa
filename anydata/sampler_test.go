package anydata

import (
	"math/rand"
	"testing"
)

func TestTwoStreamSampler(t *testing.T) {
	labeled, unlabeled, err := Split(10, 51)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewTwoStreamSampler(labeled, unlabeled, 4, 2, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	if s.EpochLen() != 5 {
		t.Errorf("expected epoch length 5 but got %d", s.EpochLen())
	}

	labeledSeen := map[int]int{}
	unlabeledSeen := map[int]int{}
	for i := 0; i < 20; i++ {
		batch := s.Next()
		if len(batch) != 4 {
			t.Fatalf("batch %d has %d ids", i, len(batch))
		}
		inBatch := map[int]bool{}
		for j, id := range batch {
			if inBatch[id] {
				t.Fatalf("batch %d repeats id %d", i, id)
			}
			inBatch[id] = true
			if j < 2 {
				if id < 0 || id >= 10 {
					t.Fatalf("batch %d: position %d has unlabeled id %d", i, j, id)
				}
				labeledSeen[id]++
			} else {
				if id < 10 || id >= 51 {
					t.Fatalf("batch %d: position %d has labeled id %d", i, j, id)
				}
				unlabeledSeen[id]++
			}
		}
		if i == 4 {
			for id := 0; id < 10; id++ {
				if labeledSeen[id] != 1 {
					t.Fatalf("after one epoch, id %d seen %d times", id, labeledSeen[id])
				}
			}
		}
	}
	for id, count := range unlabeledSeen {
		if count != 1 {
			t.Errorf("unlabeled id %d drawn %d times within one pass", id, count)
		}
	}
}

func TestTwoStreamSamplerNoLabeled(t *testing.T) {
	s, err := NewTwoStreamSampler(nil, []int{0, 1, 2, 3, 4}, 2, 2, rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatal(err)
	}
	if s.LabeledBS() != 0 || s.EpochLen() != 2 {
		t.Errorf("unexpected sampler: labeled %d, epoch %d", s.LabeledBS(), s.EpochLen())
	}
	for i := 0; i < 10; i++ {
		batch := s.Next()
		if len(batch) != 2 || batch[0] == batch[1] {
			t.Fatalf("bad batch %v", batch)
		}
	}
}

func TestTwoStreamSamplerErrors(t *testing.T) {
	table := []struct {
		name                   string
		labeled, unlabeled     []int
		batchSize, unlabeledBS int
	}{
		{"NoUnlabeledShare", []int{0, 1}, []int{2, 3}, 2, 0},
		{"NegativeLabeledShare", []int{0, 1}, []int{2, 3}, 1, 2},
		{"SmallLabeledPool", []int{0}, []int{2, 3}, 4, 2},
		{"SmallUnlabeledPool", []int{0, 1}, []int{2}, 4, 2},
		{"Overlap", []int{0, 1}, []int{1, 2}, 2, 1},
		{"Negative", []int{-1, 1}, []int{2, 3}, 2, 1},
	}
	for _, x := range table {
		t.Run(x.name, func(t *testing.T) {
			_, err := NewTwoStreamSampler(x.labeled, x.unlabeled, x.batchSize, x.unlabeledBS, nil)
			if _, ok := err.(*ConfigError); !ok {
				t.Errorf("expected *ConfigError but got %v", err)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	labeled, unlabeled, err := Split(2, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(labeled) != 2 || labeled[1] != 1 || len(unlabeled) != 3 || unlabeled[0] != 2 {
		t.Errorf("unexpected split %v %v", labeled, unlabeled)
	}
	if _, _, err := Split(6, 5); err == nil {
		t.Error("expected error")
	}
}
