package recordstore

// Table names in the record-store base.
const (
	TableReservations = "Reservations"
	TableProperties   = "Properties"
	TableAutomations  = "Automations"
)

// Reservations table field names.
const (
	FieldUID                    = "UID"
	FieldFeedURL                = "Feed URL"
	FieldEntrySource            = "Entry Source"
	FieldProperty               = "Property"
	FieldCheckIn                = "Check-in Date"
	FieldCheckOut               = "Check-out Date"
	FieldEntryType              = "Entry Type"
	FieldServiceType            = "Service Type"
	FieldStatus                 = "Status"
	FieldBlockType              = "Block Type"
	FieldSameDay                = "Same Day Turnover"
	FieldSameDayOverride        = "Same Day?"
	FieldOverlapping            = "Overlapping Dates"
	FieldOwnerArriving          = "Owner Arriving"
	FieldLongTermGuest          = "Long Term Guest"
	FieldSupplierInfo           = "Supplier Info"
	FieldMissingCount           = "Missing Count"
	FieldMissingSince           = "Missing Since"
	FieldLastSeen               = "Last Seen"
	FieldServiceJobID           = "Service Job ID"
	FieldServiceAppointmentID   = "Service Appointment ID"
	FieldJobStatus              = "Job Status"
	FieldScheduledServiceTime   = "Scheduled Service Time"
	FieldFinalServiceTime       = "Final Service Time" // formula, read-only
	FieldCustomInstructions     = "Custom Service Line Instructions"
	FieldServiceLineDescription = "Service Line Description"
	FieldSyncStatus             = "Sync Status"
	FieldSyncDetails            = "Sync Details"
	FieldScheduleSyncDetails    = "Schedule Sync Details"
	FieldLastUpdated            = "Last Updated"
)

// Properties table field names.
const (
	FieldPropertyName        = "Name"
	FieldOwnerName           = "Owner Name"
	FieldListingNumber       = "Listing Number"
	FieldCustomerID          = "Customer ID"
	FieldAddressID           = "Address ID"
	FieldFeedURLs            = "Feed URLs"
	FieldTurnoverTemplate    = "Turnover Template"
	FieldLaundryTemplate     = "Return Laundry Template"
	FieldInspectionTemplate  = "Inspection Template"
	FieldTurnoverJobType     = "Turnover Job Type"
	FieldLaundryJobType      = "Return Laundry Job Type"
	FieldInspectionJobType   = "Inspection Job Type"
)

// Automations table field names.
const (
	FieldAutomationName    = "Name"
	FieldAutomationEnabled = "Enabled"
	FieldAutomationLastRun = "Last Run"
	FieldAutomationMessage = "Message"
	FieldAutomationSuccess = "Success"
	FieldAutomationSeconds = "Duration Seconds"
	FieldAutomationStats   = "Statistics"
)
