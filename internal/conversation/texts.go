package conversation

// Shared prompts.
const (
	txtUnknownAction = "الإجراء غير معروف."
	txtChooseOption  = "الرجاء اختيار خيار:"
	txtNotFound      = "التذكرة غير موجودة."
	txtFinalized     = "التذكرة مغلقة أو تمت معالجتها بالفعل ولا يمكن تعديلها."
	txtInvalidInput  = "البيانات المدخلة غير صالحة. حاول مرة أخرى."
	txtError         = "حدث خطأ. أعد المحاولة."
	txtStale         = "انتهت صلاحية هذا الخيار. الرجاء البدء من جديد."
	txtWrongStatus   = "لا يمكن تنفيذ هذا الإجراء في حالة التذكرة الحالية."
	txtBadPhone      = "رقم الهاتف غير صالح. يرجى إدخال رقم مكون من 6 إلى 15 رقماً:"
	txtEmptyText     = "الرجاء إدخال نص غير فارغ:"
	txtGreeting      = "مرحباً %s"
	txtDetailsButton = "عرض التفاصيل"
	txtYes           = "نعم"
	txtNo            = "لا"
)

// DA prompts.
const (
	txtDAPhone          = "أهلاً! يرجى إدخال رقم هاتفك للاشتراك (DA):"
	txtDASubscribed     = "تم الاشتراك بنجاح كـ DA!"
	txtDAAddIssue       = "إضافة مشكلة"
	txtDAQueryIssue     = "استعلام عن مشكلة"
	txtDANoSubscription = "لم يتم العثور على بيانات الاشتراك أو رقم الهاتف."
	txtDAChooseOrder    = "اختر الطلب الذي تريد رفع مشكلة عنه:"
	txtDAOrderButton    = "طلب %s - %s"
	txtDAManualButton   = "إدخال يدوي"
	txtDANoOrders       = "لا توجد طلبات اليوم. يرجى إدخال رقم الطلب والعميل يدويًا (مثال: 12345,بيبس):"
	txtDAOrdersFailed   = "تعذر جلب الطلبات حالياً. يرجى إدخال رقم الطلب والعميل يدويًا (مثال: 12345,بيبس):"
	txtDAManualPrompt   = "يرجى إدخال رقم الطلب والعميل يدويًا (مثال: 12345,بيبس):"
	txtDABadManual      = "صيغة الإدخال غير صحيحة. يرجى استخدام الصيغة: رقم الطلب,اسم العميل"
	txtDAOrderChosen    = "تم اختيار الطلب رقم %s للعميل %s.\nالآن، صف المشكلة التي تواجهها:"
	txtDAChooseReason   = "اختر سبب المشكلة:"
	txtDAChooseType     = "اختر نوع المشكلة المناسب:"
	txtDABadReason      = "خطأ في اختيار سبب المشكلة."
	txtDABadType        = "خطأ في اختيار نوع المشكلة."
	txtDATypeChosen     = "تم تحديث نوع المشكلة إلى: %s"
	txtDAAttachPrompt   = "هل تريد إرفاق صورة للمشكلة؟"
	txtDASendImage      = "يرجى إرسال الصورة:"
	txtDAUploadFailed   = "فشل رفع الصورة. حاول مرة أخرى:"
	txtDANotAnImage     = "لم يتم إرسال صورة صحيحة. أعد الإرسال:"
	txtDAEditMenu       = "اختر الحقل الذي تريد تعديله:"
	txtDANewValue       = "أدخل القيمة الجديدة لـ %s:"
	txtDAUpdated        = "تم تحديث %s بنجاح."
	txtDAReasonFirst    = "يرجى اختيار سبب المشكلة أولاً."
	txtDAIncomplete     = "بيانات التذكرة غير مكتملة. يرجى التعديل قبل الإرسال."
	txtDACreated        = "تم إنشاء التذكرة برقم %d.\nالحالة: %s"
	txtDANoTicketsToday = "لا توجد تذاكر اليوم."
	txtDANoTickets      = "لا توجد تذاكر."
	txtDASendInfo       = "إرسال معلومات إضافية"
	txtDAMarkDone       = "تم تنفيذ الإجراء"
	txtDAInfoPrompt     = "أدخل المعلومات الإضافية المطلوبة:"
	txtDAInfoSent       = "تم إرسال المعلومات الإضافية إلى المشرف."
	txtDADoneSent       = "تم إبلاغ المشرف بتنفيذ الإجراء."
)

// Supervisor prompts.
const (
	txtSupPhone          = "أهلاً! يرجى إدخال رقم هاتفك للاشتراك (Supervisor):"
	txtSupSubscribed     = "تم الاشتراك بنجاح كـ Supervisor!"
	txtSupShowAll        = "عرض الكل"
	txtSupSearch         = "استعلام عن مشكلة"
	txtSupOrderPrompt    = "أدخل رقم الطلب:"
	txtSupNoOpen         = "لا توجد تذاكر مفتوحة حالياً."
	txtSupNoMatch        = "لم يتم العثور على تذاكر مطابقة."
	txtSupSolve          = "حل المشكلة"
	txtSupMoreInfo       = "طلب المزيد من المعلومات"
	txtSupSendClient     = "إرسال إلى العميل"
	txtSupForward        = "إرسال للحالة إلى الوكيل"
	txtSupClose          = "إغلاق التذكرة"
	txtSupSolvePrompt    = "أدخل رسالة الحل للمشكلة:"
	txtSupInfoPrompt     = "أدخل المعلومات الإضافية المطلوبة:"
	txtSupSolutionSent   = "تم إرسال الحل إلى الوكيل."
	txtSupRequestSent    = "تم إرسال الطلب إلى الوكيل."
	txtSupConfirmClient  = "هل أنت متأكد من إرسال التذكرة إلى العميل؟"
	txtSupSentClient     = "تم إرسال التذكرة إلى العميل."
	txtSupNoClientSub    = "تم تحديث حالة التذكرة، لكن لا يوجد مشترك للعميل %s."
	txtSupCancelClient   = "تم إلغاء الإرسال إلى العميل."
	txtSupConfirmForward = "هل أنت متأكد من إرسال الحل إلى الوكيل؟"
	txtSupForwarded      = "تم إرسال التذكرة إلى الوكيل."
	txtSupCancelForward  = "تم إلغاء إرسال التذكرة إلى الوكيل."
	txtSupNoSolution     = "لا يوجد حل من العميل."
	txtSupClosed         = "تم إغلاق التذكرة."
)

// Client prompts.
const (
	txtCliPhone        = "أهلاً! يرجى إدخال رقم هاتفك للاشتراك (Client):"
	txtCliPhoneOK      = "تم استقبال رقم الهاتف. الآن، يرجى إدخال اسم العميل الذي تمثله (مثال: بيبس):"
	txtCliNamePrompt   = "يرجى إدخال اسم العميل الذي تمثله (مثال: بيبس):"
	txtCliSubscribed   = "تم الاشتراك بنجاح كـ Client!"
	txtCliShowTickets  = "عرض المشاكل"
	txtCliNoTickets    = "لا توجد تذاكر في انتظار ردك."
	txtCliNow          = "حالياً"
	txtCliIn15         = "خلال 15 دقيقة"
	txtCliIn10         = "خلال 10 دقائق"
	txtCliSolve        = "حل المشكلة"
	txtCliIgnore       = "تجاهل"
	txtCliSolvePrompt  = "أدخل الحل للمشكلة:"
	txtCliSolved       = "تم إرسال ردك إلى المشرف."
	txtCliIgnored      = "تم إرسال ردك (تم تجاهل التذكرة)."
	txtCliReminderSet  = "سيتم تذكيرك بهذه التذكرة بعد %d دقيقة."
	txtCliIgnoredValue = "ignored"
)
