package linearscan

// Hand-authored in the shape mockgen would produce for BasicSpillPolicy,
// since this module's go.mod pulls in go.uber.org/mock for test doubles
// but no toolchain run is available to generate it.

import (
	"reflect"

	"github.com/kestrelc/regallo/internal/interval"
	"go.uber.org/mock/gomock"
)

type MockBasicSpillPolicy struct {
	ctrl     *gomock.Controller
	recorder *MockBasicSpillPolicyMockRecorder
}

type MockBasicSpillPolicyMockRecorder struct {
	mock *MockBasicSpillPolicy
}

func NewMockBasicSpillPolicy(ctrl *gomock.Controller) *MockBasicSpillPolicy {
	mock := &MockBasicSpillPolicy{ctrl: ctrl}
	mock.recorder = &MockBasicSpillPolicyMockRecorder{mock}
	return mock
}

func (m *MockBasicSpillPolicy) EXPECT() *MockBasicSpillPolicyMockRecorder {
	return m.recorder
}

func (m *MockBasicSpillPolicy) SpillAtInterval(current *interval.Interval, active *activeSet) *interval.Interval {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "SpillAtInterval", current, active)
	ret0, _ := ret[0].(*interval.Interval)
	return ret0
}

func (mr *MockBasicSpillPolicyMockRecorder) SpillAtInterval(current, active interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SpillAtInterval", reflect.TypeOf((*MockBasicSpillPolicy)(nil).SpillAtInterval), current, active)
}
