package workflow

// WorkflowType classifies the business process a workflow executes.
type WorkflowType string

const (
	TypeOrderFulfillment  WorkflowType = "ORDER_FULFILLMENT"
	TypePicking           WorkflowType = "PICKING"
	TypePacking           WorkflowType = "PACKING"
	TypeReturns           WorkflowType = "RETURNS"
	TypeCrossDock         WorkflowType = "CROSS_DOCK"
	TypeReplenishment     WorkflowType = "REPLENISHMENT"
	TypeCycleCount        WorkflowType = "CYCLE_COUNT"
	TypeReceiving         WorkflowType = "RECEIVING"
	TypePutaway           WorkflowType = "PUTAWAY"
	TypeValueAddedService WorkflowType = "VALUE_ADDED_SERVICE"
	TypeWave              WorkflowType = "WAVE"
	TypeWaveless          WorkflowType = "WAVELESS"
	TypeQualityCheck      WorkflowType = "QUALITY_CHECK"
	TypeInventoryTransfer WorkflowType = "INVENTORY_TRANSFER"
	TypeShipping          WorkflowType = "SHIPPING"
)

// String returns the string representation of the type.
func (t WorkflowType) String() string {
	return string(t)
}

// SupportsWaveless reports whether workflows of this type may be admitted by
// the waveless scheduler.
func (t WorkflowType) SupportsWaveless() bool {
	switch t {
	case TypeOrderFulfillment, TypePicking, TypePacking, TypeWaveless:
		return true
	}
	return false
}

// IsValid reports whether the type is one of the defined values.
func (t WorkflowType) IsValid() bool {
	switch t {
	case TypeOrderFulfillment, TypePicking, TypePacking, TypeReturns,
		TypeCrossDock, TypeReplenishment, TypeCycleCount, TypeReceiving,
		TypePutaway, TypeValueAddedService, TypeWave, TypeWaveless,
		TypeQualityCheck, TypeInventoryTransfer, TypeShipping:
		return true
	}
	return false
}
