package syncable

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/newstack-cloud/syncable/syncable/diag"
	"github.com/newstack-cloud/syncable/syncerr"
)

type RecordTestSuite struct {
	suite.Suite
}

func (s *RecordTestSuite) Test_get_set_round_trip_on_declared_field() {
	r := NewRecord([]string{"name", "age"})

	s.Require().NoError(r.Set("name", "alice"))
	v, ok := r.Get("name")
	s.Assert().True(ok)
	s.Assert().Equal("alice", v)
}

func (s *RecordTestSuite) Test_get_set_panics_on_undeclared_field() {
	r := NewRecord([]string{"name"})

	s.Assert().Panics(func() {
		_, _ = r.Get("nickname")
	})
	s.Assert().Panics(func() {
		_ = r.Set("nickname", "al")
	})
}

func (s *RecordTestSuite) Test_has_changes_false_until_first_touch() {
	r := NewRecordFromValues([]string{"name"}, map[string]interface{}{"name": "alice"})

	s.Assert().False(r.HasChanges())

	s.Require().NoError(r.Set("name", "bob"))
	s.Assert().True(r.HasChanges())
}

func (s *RecordTestSuite) Test_zero_net_edit_cancels_tracking() {
	r := NewRecordFromValues([]string{"name"}, map[string]interface{}{"name": "alice"})

	s.Require().NoError(r.Set("name", "bob"))
	s.Assert().True(r.HasChanges())

	s.Require().NoError(r.Set("name", "alice"))
	s.Assert().False(r.HasChanges())
}

func (s *RecordTestSuite) Test_only_baseline_value_is_captured_across_multiple_touches() {
	r := NewRecordFromValues([]string{"name"}, map[string]interface{}{"name": "alice"})

	s.Require().NoError(r.Set("name", "bob"))
	s.Require().NoError(r.Set("name", "carol"))

	cs, err := r.PeekChangeset()
	s.Require().NoError(err)
	rc := cs.(*RecordChangeset)
	s.Assert().Equal(ConcreteValue("alice"), rc.Fields["name"])
}

func (s *RecordTestSuite) Test_remove_then_set_back_cancels_tracking() {
	r := NewRecordFromValues([]string{"tag"}, map[string]interface{}{"tag": "x"})

	s.Require().NoError(r.Remove("tag"))
	s.Assert().True(r.HasChanges())

	s.Require().NoError(r.Set("tag", "x"))
	s.Assert().False(r.HasChanges())
}

func (s *RecordTestSuite) Test_changeset_clears_tracking_and_establishes_new_baseline() {
	r := NewRecordFromValues([]string{"name"}, map[string]interface{}{"name": "alice"})

	s.Require().NoError(r.Set("name", "bob"))
	cs, err := r.Changeset()
	s.Require().NoError(err)
	s.Assert().False(cs.IsEmpty())
	s.Assert().False(r.HasChanges())

	peek, err := r.PeekChangeset()
	s.Require().NoError(err)
	s.Assert().True(peek.IsEmpty())
}

func (s *RecordTestSuite) Test_undo_restores_prior_state_and_returns_redo() {
	r := NewRecordFromValues([]string{"name"}, map[string]interface{}{"name": "alice"})

	s.Require().NoError(r.Set("name", "bob"))
	cs, err := r.Changeset()
	s.Require().NoError(err)

	redo, err := r.Undo(cs)
	s.Require().NoError(err)
	v, _ := r.Get("name")
	s.Assert().Equal("alice", v)

	redone, err := r.Undo(redo)
	s.Require().NoError(err)
	v, _ = r.Get("name")
	s.Assert().Equal("bob", v)
	s.Assert().False(redone.IsEmpty())
}

func (s *RecordTestSuite) Test_undo_rejects_changeset_when_record_has_pending_changes() {
	r := NewRecordFromValues([]string{"name"}, map[string]interface{}{"name": "alice"})
	s.Require().NoError(r.Set("name", "bob"))
	cs, err := r.Changeset()
	s.Require().NoError(err)

	s.Require().NoError(r.Set("name", "carol"))

	_, err = r.Undo(cs)
	s.Require().Error(err)
	s.Assert().True(syncerr.Is(err, syncerr.ReasonCodeHasChanges))
}

func (s *RecordTestSuite) Test_undo_rejects_changeset_with_unknown_field() {
	r := NewRecord([]string{"name"})
	foreign := &RecordChangeset{Fields: map[string]PriorValue{
		"unknown": AbsentValue(),
	}}

	_, err := r.Undo(foreign)
	s.Require().Error(err)
	s.Assert().True(syncerr.Is(err, syncerr.ReasonCodeMalformedChangeset))
}

func (s *RecordTestSuite) Test_nested_record_changes_surface_through_parent_changeset() {
	inner := NewRecordFromValues([]string{"k"}, map[string]interface{}{"k": "v"})
	outer := NewRecordFromValues([]string{"meta"}, map[string]interface{}{"meta": inner})
	outer.ClearChangeTracking()

	s.Require().NoError(inner.Set("k", "w"))
	s.Assert().True(outer.HasChanges())

	cs, err := outer.Changeset()
	s.Require().NoError(err)
	rc := cs.(*RecordChangeset)
	prior, ok := rc.Fields["meta"]
	s.Require().True(ok)
	s.Assert().True(prior.IsNestedRef())
	s.Assert().False(inner.HasChanges())
}

func (s *RecordTestSuite) Test_merge_changesets_fuses_list_keeping_earliest_prior() {
	r := NewRecordFromValues([]string{"name"}, map[string]interface{}{"name": "alice"})

	s.Require().NoError(r.Set("name", "bob"))
	cs1, err := r.Changeset()
	s.Require().NoError(err)

	s.Require().NoError(r.Set("name", "carol"))
	cs2, err := r.Changeset()
	s.Require().NoError(err)

	fused, err := r.MergeChangesets([]Changeset{cs1, cs2})
	s.Require().NoError(err)
	s.Assert().False(fused.IsEmpty())
	s.Assert().True(r.HasChanges())

	rc := fused.(*RecordChangeset)
	s.Assert().Equal(ConcreteValue("alice"), rc.Fields["name"])

	s.Require().NoError(r.Rollback())
	v, _ := r.Get("name")
	s.Assert().Equal("alice", v)
	s.Assert().False(r.HasChanges())
}

func (s *RecordTestSuite) Test_merge_changesets_drops_zero_net_field() {
	r := NewRecordFromValues([]string{"name"}, map[string]interface{}{"name": "alice"})

	s.Require().NoError(r.Set("name", "bob"))
	cs1, err := r.Changeset()
	s.Require().NoError(err)

	s.Require().NoError(r.Set("name", "alice"))
	cs2, err := r.Changeset()
	s.Require().NoError(err)

	fused, err := r.MergeChangesets([]Changeset{cs1, cs2})
	s.Require().NoError(err)
	s.Assert().True(fused.IsEmpty())
	s.Assert().False(r.HasChanges())
}

func (s *RecordTestSuite) Test_merge_cloud_version_keeps_local_when_only_local_modified() {
	local := NewRecordFromValues([]string{"name"}, map[string]interface{}{"name": "alice"})
	s.Require().NoError(local.Set("name", "bob"))
	pending, err := local.PeekChangeset()
	s.Require().NoError(err)

	remote := NewRecordFromValues([]string{"name"}, map[string]interface{}{"name": "alice"})

	_, notices, err := local.MergeCloudVersion(remote, pending)
	s.Require().NoError(err)
	s.Assert().Empty(notices)
	v, _ := local.Get("name")
	s.Assert().Equal("bob", v)
}

func (s *RecordTestSuite) Test_merge_cloud_version_applies_remote_when_only_remote_modified() {
	local := NewRecordFromValues([]string{"name"}, map[string]interface{}{"name": "alice"})
	pending, err := local.PeekChangeset()
	s.Require().NoError(err)

	remote := NewRecordFromValues([]string{"name"}, map[string]interface{}{"name": "zoe"})

	_, notices, err := local.MergeCloudVersion(remote, pending)
	s.Require().NoError(err)
	s.Require().Len(notices, 1)
	s.Assert().Equal(diag.KindConflictRemoteApplied, notices[0].Kind)
	v, _ := local.Get("name")
	s.Assert().Equal("zoe", v)
}

func (s *RecordTestSuite) Test_merge_cloud_version_conflict_prefers_local_and_emits_notice() {
	local := NewRecordFromValues([]string{"name"}, map[string]interface{}{"name": "alice"})
	s.Require().NoError(local.Set("name", "bob"))
	pending, err := local.PeekChangeset()
	s.Require().NoError(err)

	remote := NewRecordFromValues([]string{"name"}, map[string]interface{}{"name": "zoe"})

	_, notices, err := local.MergeCloudVersion(remote, pending)
	s.Require().NoError(err)
	s.Require().Len(notices, 1)
	s.Assert().Equal(diag.KindConflictLocalWins, notices[0].Kind)
	v, _ := local.Get("name")
	s.Assert().Equal("bob", v)
}

func (s *RecordTestSuite) Test_merge_cloud_version_keeps_baseline_when_neither_side_modified() {
	local := NewRecordFromValues([]string{"name"}, map[string]interface{}{"name": "alice"})
	pending, err := local.PeekChangeset()
	s.Require().NoError(err)

	remote := NewRecordFromValues([]string{"name"}, map[string]interface{}{"name": "alice"})

	_, notices, err := local.MergeCloudVersion(remote, pending)
	s.Require().NoError(err)
	s.Assert().Empty(notices)
	v, _ := local.Get("name")
	s.Assert().Equal("alice", v)
}

func (s *RecordTestSuite) Test_merge_cloud_version_recurses_into_nested_record_conflict() {
	localInner := NewRecordFromValues([]string{"k"}, map[string]interface{}{"k": "base"})
	local := NewRecordFromValues([]string{"meta"}, map[string]interface{}{"meta": localInner})
	local.ClearChangeTracking()

	s.Require().NoError(localInner.Set("k", "local-edit"))
	pending, err := local.PeekChangeset()
	s.Require().NoError(err)

	remoteInner := NewRecordFromValues([]string{"k"}, map[string]interface{}{"k": "remote-edit"})
	remote := NewRecordFromValues([]string{"meta"}, map[string]interface{}{"meta": remoteInner})

	_, notices, err := local.MergeCloudVersion(remote, pending)
	s.Require().NoError(err)
	s.Require().Len(notices, 1)
	s.Assert().Equal(diag.KindConflictLocalWins, notices[0].Kind)

	mergedMeta, ok := local.Get("meta")
	s.Require().True(ok)
	mergedInner := mergedMeta.(*Record)
	v, _ := mergedInner.Get("k")
	s.Assert().Equal("local-edit", v)
}

func (s *RecordTestSuite) Test_undo_of_nested_record_change_returns_redo_that_restores_it() {
	inner := NewRecordFromValues([]string{"k"}, map[string]interface{}{"k": "v"})
	outer := NewRecordFromValues([]string{"meta"}, map[string]interface{}{"meta": inner})
	outer.ClearChangeTracking()

	s.Require().NoError(inner.Set("k", "w"))
	cs, err := outer.Changeset()
	s.Require().NoError(err)

	redo, err := outer.Undo(cs)
	s.Require().NoError(err)
	v, _ := inner.Get("k")
	s.Assert().Equal("v", v, "undo should restore the nested record's prior value")

	rc := redo.(*RecordChangeset)
	prior, ok := rc.Fields["meta"]
	s.Require().True(ok, "redo must still carry the nested field, not drop it")
	s.Assert().True(prior.IsNestedRef())

	redone, err := outer.Undo(redo)
	s.Require().NoError(err)
	v, _ = inner.Get("k")
	s.Assert().Equal("w", v, "applying the redo should reconstruct the pre-undo state")
	s.Assert().False(redone.IsEmpty())
}

func (s *RecordTestSuite) Test_merge_cloud_version_redo_restores_pre_merge_local_state() {
	local := NewRecordFromValues([]string{"x", "y"}, map[string]interface{}{"x": 2, "y": 1})
	pending, err := local.PeekChangeset()
	s.Require().NoError(err)

	remote := NewRecordFromValues([]string{"x", "y"}, map[string]interface{}{"x": 2, "y": 3})

	redo, _, err := local.MergeCloudVersion(remote, pending)
	s.Require().NoError(err)

	x, _ := local.Get("x")
	y, _ := local.Get("y")
	s.Assert().Equal(2, x)
	s.Assert().Equal(3, y)

	_, err = local.Undo(redo)
	s.Require().NoError(err)
	x, _ = local.Get("x")
	y, _ = local.Get("y")
	s.Assert().Equal(2, x, "undoing the merge redo should restore the pre-merge local value")
	s.Assert().Equal(1, y, "undoing the merge redo should restore the pre-merge local value")
}

func (s *RecordTestSuite) Test_merge_cloud_version_returns_empty_redo_when_merged_matches_pre_merge_local() {
	local := NewRecordFromValues([]string{"x", "y"}, map[string]interface{}{"x": 2, "y": 1})
	pending, err := local.PeekChangeset()
	s.Require().NoError(err)

	remote := NewRecordFromValues([]string{"x", "y"}, map[string]interface{}{"x": 2, "y": 1})

	redo, _, err := local.MergeCloudVersion(remote, pending)
	s.Require().NoError(err)
	s.Assert().True(redo.IsEmpty(), "nothing changed relative to pre-merge local, so the redo must be empty")
}

func (s *RecordTestSuite) Test_make_immutable_rejects_further_mutation() {
	r := NewRecordFromValues([]string{"name"}, map[string]interface{}{"name": "alice"})
	r.MakeImmutable()

	err := r.Set("name", "bob")
	s.Require().Error(err)
	s.Assert().True(syncerr.Is(err, syncerr.ReasonCodeImmutable))
}

func (s *RecordTestSuite) Test_copy_is_independent_of_source() {
	r := NewRecordFromValues([]string{"name"}, map[string]interface{}{"name": "alice"})
	c := r.Copy().(*Record)

	s.Require().NoError(c.Set("name", "bob"))
	s.Assert().False(r.HasChanges())

	v, _ := r.Get("name")
	s.Assert().Equal("alice", v)
}

func (s *RecordTestSuite) Test_changeset_tag_is_empty_with_empty_id_generator() {
	r := NewRecordFromValues(
		[]string{"name"},
		map[string]interface{}{"name": "alice"},
		WithRecordIDGenerator(NewEmptyIDGenerator()),
	)
	s.Require().NoError(r.Set("name", "bob"))

	cs, err := r.Changeset()
	s.Require().NoError(err)
	rc := cs.(*RecordChangeset)
	s.Assert().Equal("", rc.Tag)
}

func TestRecordTestSuite(t *testing.T) {
	suite.Run(t, new(RecordTestSuite))
}
