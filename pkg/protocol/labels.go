package protocol

var statusLabels = map[TicketStatus]string{
	StatusOpened:                     "مفتوحة",
	StatusPendingDAAction:            "في انتظار إجراء الوكيل",
	StatusAwaitingClientResponse:     "في انتظار رد العميل",
	StatusClientResponded:            "تم رد العميل",
	StatusClientIgnored:              "تم تجاهل العميل",
	StatusPendingDAResponse:          "في انتظار رد الوكيل",
	StatusAdditionalInfoProvided:     "تم توفير معلومات إضافية",
	StatusAwaitingSupervisorApproval: "في انتظار موافقة المشرف",
	StatusClosed:                     "مغلقة",
}

// DisplayLabel returns the user-facing label for a status.
// Unknown statuses render as their raw value.
func DisplayLabel(s TicketStatus) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}
