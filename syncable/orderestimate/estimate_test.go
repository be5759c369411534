package orderestimate

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type EstimateTestSuite struct {
	suite.Suite
}

func applyMoves(src []string, moves []string, dst []string) []string {
	working := append([]string(nil), src...)
	for _, key := range moves {
		from := indexOf(working, key)
		to := indexOf(dst, key)
		moveInPlace(working, from, to)
	}
	return working
}

func (s *EstimateTestSuite) Test_reproduces_destination_sequence_for_single_move_to_front() {
	src := []string{"a", "b", "c"}
	dst := []string{"c", "a", "b"}

	moves := Estimate(src, dst, nil)

	s.Assert().Equal([]string{"c"}, moves)
	s.Assert().Equal(dst, applyMoves(src, moves, dst))
}

func (s *EstimateTestSuite) Test_reproduces_destination_sequence_with_multiple_displacements() {
	src := []string{"a", "b", "c", "d", "e"}
	dst := []string{"e", "c", "a", "d", "b"}

	moves := Estimate(src, dst, nil)

	s.Assert().Equal(dst, applyMoves(src, moves, dst))
}

func (s *EstimateTestSuite) Test_no_moves_when_sequences_already_match() {
	src := []string{"a", "b", "c"}
	dst := []string{"a", "b", "c"}

	moves := Estimate(src, dst, nil)

	s.Assert().Empty(moves)
}

func (s *EstimateTestSuite) Test_hints_are_applied_first_but_result_still_reproduces_destination() {
	src := []string{"a", "b", "c", "d"}
	dst := []string{"d", "b", "a", "c"}

	moves := Estimate(src, dst, map[string]struct{}{"d": {}})

	s.Assert().Equal("d", moves[0])
	s.Assert().Equal(dst, applyMoves(src, moves, dst))
}

func (s *EstimateTestSuite) Test_panics_when_sequences_have_different_lengths() {
	s.Assert().Panics(func() {
		Estimate([]string{"a", "b"}, []string{"a", "b", "c"}, nil)
	})
}

func TestEstimateTestSuite(t *testing.T) {
	suite.Run(t, new(EstimateTestSuite))
}
