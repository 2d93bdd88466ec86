package sanitizer

import "bookingsync/pkg/model"

// SanitizeBookingRequest normalizes req in place.
func SanitizeBookingRequest(req *model.BookingRequest) {
	if req == nil {
		return
	}
	req.ResourceID = NormalizeIdentifier(req.ResourceID)
	req.UserID = NormalizeIdentifier(req.UserID)
	req.Currency = NormalizeCurrency(req.Currency)
	req.CheckIn = req.CheckIn.UTC()
	req.CheckOut = req.CheckOut.UTC()

	req.Contact.Name = NormalizeName(req.Contact.Name)
	req.Contact.Email = NormalizeEmail(req.Contact.Email)
	req.Contact.Phone = NormalizePhone(req.Contact.Phone)
	req.Contact.SpecialRequest = NormalizeFreeText(req.Contact.SpecialRequest)
}
