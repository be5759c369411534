package syncable

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/newstack-cloud/syncable/syncerr"
)

type OrderedSetTestSuite struct {
	suite.Suite
}

func (s *OrderedSetTestSuite) Test_initial_order_matches_construction_order() {
	os := NewOrderedSetFromMembers([]string{"a", "b", "c"})
	s.Assert().Equal([]string{"a", "b", "c"}, os.Enumerate())
}

func (s *OrderedSetTestSuite) Test_duplicate_construction_members_are_deduplicated() {
	os := NewOrderedSetFromMembers([]string{"a", "b", "a"})
	s.Assert().Equal([]string{"a", "b"}, os.Enumerate())
}

func (s *OrderedSetTestSuite) Test_add_existing_member_is_noop() {
	os := NewOrderedSetFromMembers([]string{"a"})
	s.Require().NoError(os.Add("a"))
	s.Assert().False(os.HasChanges())
}

func (s *OrderedSetTestSuite) Test_add_appends_and_tracks() {
	os := NewOrderedSetFromMembers([]string{"a"})
	s.Require().NoError(os.Add("b"))
	s.Assert().Equal([]string{"a", "b"}, os.Enumerate())
	s.Assert().True(os.HasChanges())
}

func (s *OrderedSetTestSuite) Test_move_relocates_member() {
	os := NewOrderedSetFromMembers([]string{"a", "b", "c"})
	s.Require().NoError(os.Move("c", 0))
	s.Assert().Equal([]string{"c", "a", "b"}, os.Enumerate())
}

func (s *OrderedSetTestSuite) Test_move_to_same_index_is_noop() {
	os := NewOrderedSetFromMembers([]string{"a", "b", "c"})
	s.Require().NoError(os.Move("b", 1))
	s.Assert().False(os.HasChanges())
}

func (s *OrderedSetTestSuite) Test_undo_restores_membership_and_order() {
	os := NewOrderedSetFromMembers([]string{"a", "b", "c"})
	s.Require().NoError(os.Remove("b"))
	s.Require().NoError(os.Move("c", 0))

	cs, err := os.Changeset()
	s.Require().NoError(err)

	_, err = os.Undo(cs)
	s.Require().NoError(err)
	s.Assert().Equal([]string{"a", "b", "c"}, os.Enumerate())
}

func (s *OrderedSetTestSuite) Test_undo_rejects_when_has_pending_changes() {
	os := NewOrderedSetFromMembers([]string{"a"})
	s.Require().NoError(os.Add("b"))
	cs, err := os.Changeset()
	s.Require().NoError(err)

	s.Require().NoError(os.Add("c"))

	_, err = os.Undo(cs)
	s.Require().Error(err)
	s.Assert().True(syncerr.Is(err, syncerr.ReasonCodeHasChanges))
}

func (s *OrderedSetTestSuite) Test_rollback_discards_pending_edits() {
	os := NewOrderedSetFromMembers([]string{"a", "b"})
	s.Require().NoError(os.Remove("a"))
	s.Require().NoError(os.Move("b", 0))

	s.Require().NoError(os.Rollback())
	s.Assert().Equal([]string{"a", "b"}, os.Enumerate())
	s.Assert().False(os.HasChanges())
}

func (s *OrderedSetTestSuite) Test_merge_cloud_version_reconciles_membership_and_order() {
	local := NewOrderedSetFromMembers([]string{"a", "b", "c"})
	s.Require().NoError(local.Move("c", 0))
	pending, err := local.PeekChangeset()
	s.Require().NoError(err)

	remote := NewOrderedSetFromMembers([]string{"a", "b", "c", "d"})

	_, notices, err := local.MergeCloudVersion(remote, pending)
	s.Require().NoError(err)
	s.Require().Len(notices, 1)
	s.Assert().True(local.Contains("d"))
	s.Assert().Equal([]string{"c", "a", "b", "d"}, local.Enumerate())
}

func (s *OrderedSetTestSuite) Test_make_immutable_rejects_mutation() {
	os := NewOrderedSetFromMembers([]string{"a"})
	os.MakeImmutable()

	err := os.Add("b")
	s.Require().Error(err)
	s.Assert().True(syncerr.Is(err, syncerr.ReasonCodeImmutable))
}

func TestOrderedSetTestSuite(t *testing.T) {
	suite.Run(t, new(OrderedSetTestSuite))
}
