package conversation

// Reason is an issue category with its ordered sub-types.
type Reason struct {
	Code  string // short code used in callback tokens
	Label string
	Types []string
}

// Reasons is the fixed issue taxonomy, in display order.
var Reasons = []Reason{
	{Code: "stor", Label: "المخزن", Types: []string{
		"تالف", "منتهي الصلاحية", "عجز في المخزون", "تحضير خاطئ",
	}},
	{Code: "supp", Label: "المورد", Types: []string{
		"خطا بالمستندات", "رصيد غير موجود", "اوردر خاطئ", "اوردر بكميه اكبر",
		"خطا فى الباركود او اسم الصنف", "اوردر وهمى", "خطأ فى الاسعار",
		"تخطى وقت الانتظار لدى العميل", "اختلاف بيانات الفاتورة", "توالف مصنع",
	}},
	{Code: "cli", Label: "العميل", Types: []string{
		"رفض الاستلام", "مغلق", "عطل بالسيستم", "لا يوجد مساحة للتخزين", "شك عميل فى سلامة العبوه",
	}},
	{Code: "del", Label: "التسليم", Types: []string{
		"وصول متاخر", "تالف", "عطل بالسياره",
	}},
}

// ReasonByCode looks up a category by its token code.
func ReasonByCode(code string) (Reason, bool) {
	for _, r := range Reasons {
		if r.Code == code {
			return r, true
		}
	}
	return Reason{}, false
}

// TypeAt returns the sub-type at index i.
func (r Reason) TypeAt(i int) (string, bool) {
	if i < 0 || i >= len(r.Types) {
		return "", false
	}
	return r.Types[i], true
}
