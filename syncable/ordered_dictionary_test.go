package syncable

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/newstack-cloud/syncable/syncerr"
)

type OrderedDictionaryTestSuite struct {
	suite.Suite
}

func entries(pairs ...interface{}) []OrderedDictionaryEntry[string] {
	out := make([]OrderedDictionaryEntry[string], 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, OrderedDictionaryEntry[string]{Key: pairs[i].(string), Value: pairs[i+1]})
	}
	return out
}

func (s *OrderedDictionaryTestSuite) Test_initial_order_matches_construction_order() {
	od := NewOrderedDictionaryFromEntries(entries("a", 1, "b", 2, "c", 3))

	s.Assert().Equal([]string{"a", "b", "c"}, od.Keys())
}

func (s *OrderedDictionaryTestSuite) Test_set_existing_key_does_not_disturb_order() {
	od := NewOrderedDictionaryFromEntries(entries("a", 1, "b", 2))

	s.Require().NoError(od.Set("a", 99))
	s.Assert().Equal([]string{"a", "b"}, od.Keys())
	s.Assert().True(od.HasChanges())
}

func (s *OrderedDictionaryTestSuite) Test_set_new_key_appends_to_order() {
	od := NewOrderedDictionaryFromEntries(entries("a", 1))

	s.Require().NoError(od.Set("b", 2))
	s.Assert().Equal([]string{"a", "b"}, od.Keys())
}

func (s *OrderedDictionaryTestSuite) Test_move_relocates_key_and_tracks_order() {
	od := NewOrderedDictionaryFromEntries(entries("a", 1, "b", 2, "c", 3))

	s.Require().NoError(od.Move("c", 0))
	s.Assert().Equal([]string{"c", "a", "b"}, od.Keys())
	s.Assert().True(od.HasChanges())
}

func (s *OrderedDictionaryTestSuite) Test_move_to_same_index_is_noop() {
	od := NewOrderedDictionaryFromEntries(entries("a", 1, "b", 2, "c", 3))

	s.Require().NoError(od.Move("b", 1))
	s.Assert().False(od.HasChanges())
}

func (s *OrderedDictionaryTestSuite) Test_move_of_unknown_key_panics() {
	od := NewOrderedDictionaryFromEntries(entries("a", 1))
	s.Assert().Panics(func() {
		_ = od.Move("z", 0)
	})
}

func (s *OrderedDictionaryTestSuite) Test_undo_restores_order_and_returns_redo() {
	od := NewOrderedDictionaryFromEntries(entries("a", 1, "b", 2, "c", 3))

	s.Require().NoError(od.Move("c", 0))
	cs, err := od.Changeset()
	s.Require().NoError(err)

	redo, err := od.Undo(cs)
	s.Require().NoError(err)
	s.Assert().Equal([]string{"a", "b", "c"}, od.Keys())

	_, err = od.Undo(redo)
	s.Require().NoError(err)
	s.Assert().Equal([]string{"c", "a", "b"}, od.Keys())
}

func (s *OrderedDictionaryTestSuite) Test_remove_then_undo_restores_key_and_order() {
	od := NewOrderedDictionaryFromEntries(entries("a", 1, "b", 2, "c", 3))

	s.Require().NoError(od.Remove("b"))
	cs, err := od.Changeset()
	s.Require().NoError(err)

	_, err = od.Undo(cs)
	s.Require().NoError(err)
	s.Assert().Equal([]string{"a", "b", "c"}, od.Keys())
	v, ok := od.Get("b")
	s.Assert().True(ok)
	s.Assert().Equal(2, v)
}

func (s *OrderedDictionaryTestSuite) Test_undo_rejects_when_has_pending_changes() {
	od := NewOrderedDictionaryFromEntries(entries("a", 1))
	s.Require().NoError(od.Set("a", 2))
	cs, err := od.Changeset()
	s.Require().NoError(err)

	s.Require().NoError(od.Set("a", 3))

	_, err = od.Undo(cs)
	s.Require().Error(err)
	s.Assert().True(syncerr.Is(err, syncerr.ReasonCodeHasChanges))
}

func (s *OrderedDictionaryTestSuite) Test_merge_cloud_version_reconciles_order_and_values() {
	local := NewOrderedDictionaryFromEntries(entries("a", 1, "b", 2, "c", 3))
	s.Require().NoError(local.Move("c", 0))
	pending, err := local.PeekChangeset()
	s.Require().NoError(err)

	remote := NewOrderedDictionaryFromEntries(entries("a", 1, "b", 2, "c", 3))
	s.Require().NoError(remote.Set("b", 20))

	_, _, err = local.MergeCloudVersion(remote, pending)
	s.Require().NoError(err)

	v, _ := local.Get("b")
	s.Assert().Equal(20, v)
	s.Assert().Equal([]string{"c", "a", "b"}, local.Keys())
}

func (s *OrderedDictionaryTestSuite) Test_make_immutable_rejects_mutation() {
	od := NewOrderedDictionaryFromEntries(entries("a", 1))
	od.MakeImmutable()

	err := od.Set("a", 2)
	s.Require().Error(err)
	s.Assert().True(syncerr.Is(err, syncerr.ReasonCodeImmutable))
}

func TestOrderedDictionaryTestSuite(t *testing.T) {
	suite.Run(t, new(OrderedDictionaryTestSuite))
}
