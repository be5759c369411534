package syncable

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/newstack-cloud/syncable/syncerr"
)

type ArrayTestSuite struct {
	suite.Suite
}

func (s *ArrayTestSuite) Test_append_and_at() {
	a := NewArray[string]()
	s.Require().NoError(a.Append("x"))
	s.Require().NoError(a.Append("y"))

	v, ok := a.At(0)
	s.Assert().True(ok)
	s.Assert().Equal("x", v)
	s.Assert().Equal(2, a.Len())
}

func (s *ArrayTestSuite) Test_duplicates_are_permitted() {
	a := NewArrayFromMembers([]string{"x", "x", "y"})
	s.Assert().Equal([]string{"x", "x", "y"}, a.Enumerate())
}

func (s *ArrayTestSuite) Test_insert_shifts_later_members() {
	a := NewArrayFromMembers([]string{"a", "c"})
	s.Require().NoError(a.Insert(1, "b"))
	s.Assert().Equal([]string{"a", "b", "c"}, a.Enumerate())
	s.Assert().True(a.HasChanges())
}

func (s *ArrayTestSuite) Test_remove_at_and_zero_net_cancellation() {
	a := NewArrayFromMembers([]string{"a", "b", "c"})
	s.Require().NoError(a.RemoveAt(1))
	s.Assert().True(a.HasChanges())

	s.Require().NoError(a.Insert(1, "b"))
	s.Assert().False(a.HasChanges())
}

func (s *ArrayTestSuite) Test_move_relocates_member() {
	a := NewArrayFromMembers([]string{"a", "b", "c"})
	s.Require().NoError(a.Move(2, 0))
	s.Assert().Equal([]string{"c", "a", "b"}, a.Enumerate())
}

func (s *ArrayTestSuite) Test_move_to_same_index_is_noop() {
	a := NewArrayFromMembers([]string{"a", "b", "c"})
	s.Require().NoError(a.Move(1, 1))
	s.Assert().False(a.HasChanges())
}

func (s *ArrayTestSuite) Test_undo_restores_sequence_and_returns_redo() {
	a := NewArrayFromMembers([]string{"a", "b", "c"})
	s.Require().NoError(a.RemoveAt(1))

	cs, err := a.Changeset()
	s.Require().NoError(err)

	redo, err := a.Undo(cs)
	s.Require().NoError(err)
	s.Assert().Equal([]string{"a", "b", "c"}, a.Enumerate())

	_, err = a.Undo(redo)
	s.Require().NoError(err)
	s.Assert().Equal([]string{"a", "c"}, a.Enumerate())
}

func (s *ArrayTestSuite) Test_undo_rejects_when_has_pending_changes() {
	a := NewArrayFromMembers([]string{"a"})
	s.Require().NoError(a.Append("b"))
	cs, err := a.Changeset()
	s.Require().NoError(err)

	s.Require().NoError(a.Append("c"))

	_, err = a.Undo(cs)
	s.Require().Error(err)
	s.Assert().True(syncerr.Is(err, syncerr.ReasonCodeHasChanges))
}

func (s *ArrayTestSuite) Test_rollback_discards_pending_edits() {
	a := NewArrayFromMembers([]string{"a", "b"})
	s.Require().NoError(a.RemoveAt(0))
	s.Require().NoError(a.Append("c"))

	s.Require().NoError(a.Rollback())
	s.Assert().Equal([]string{"a", "b"}, a.Enumerate())
	s.Assert().False(a.HasChanges())
}

func (s *ArrayTestSuite) Test_merge_cloud_version_adopts_remote_only_addition() {
	local := NewArrayFromMembers([]string{"a", "b"})
	pending, err := local.PeekChangeset()
	s.Require().NoError(err)

	remote := NewArrayFromMembers([]string{"a", "b", "c"})

	_, notices, err := local.MergeCloudVersion(remote, pending)
	s.Require().NoError(err)
	s.Require().Len(notices, 1)
	s.Assert().Contains(local.Enumerate(), "c")
}

func (s *ArrayTestSuite) Test_merge_cloud_version_keeps_local_only_change() {
	local := NewArrayFromMembers([]string{"a", "b"})
	s.Require().NoError(local.Append("c"))
	pending, err := local.PeekChangeset()
	s.Require().NoError(err)

	remote := NewArrayFromMembers([]string{"a", "b"})

	_, notices, err := local.MergeCloudVersion(remote, pending)
	s.Require().NoError(err)
	s.Assert().Empty(notices)
	s.Assert().Contains(local.Enumerate(), "c")
}

func (s *ArrayTestSuite) Test_merge_cloud_version_conflict_keeps_local_count() {
	local := NewArrayFromMembers([]string{"a"})
	s.Require().NoError(local.Append("a"))
	pending, err := local.PeekChangeset()
	s.Require().NoError(err)

	remote := NewArrayFromMembers([]string{"a", "a", "a"})

	_, notices, err := local.MergeCloudVersion(remote, pending)
	s.Require().NoError(err)
	s.Require().Len(notices, 1)
	s.Assert().Equal(2, len(local.Enumerate()))
}

func (s *ArrayTestSuite) Test_make_immutable_rejects_mutation() {
	a := NewArrayFromMembers([]string{"a"})
	a.MakeImmutable()

	err := a.Append("b")
	s.Require().Error(err)
	s.Assert().True(syncerr.Is(err, syncerr.ReasonCodeImmutable))
}

func TestArrayTestSuite(t *testing.T) {
	suite.Run(t, new(ArrayTestSuite))
}
