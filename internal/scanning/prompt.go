package scanning

// documentPrompt is the instruction shared by every extraction backend
const documentPrompt = `You are analyzing a photo that should show an appliance bill, a warranty card, a product box or an invoice.

First decide whether the image is a legible document of one of those kinds.
- If it is not (a selfie, a pet, a landscape, a blank page, an unreadable blur), set "is_valid_document" to false, write a short friendly one-sentence "validation_message" telling the user what you see instead, and leave every other field empty.
- If it is, set "is_valid_document" to true and "validation_message" to "".

For a valid document extract each of these fields independently:

1. **device_serial**: the serial number (S/N) of the product.
2. **brand_name**: the manufacturer brand, for example "Samsung", "LG", "Whirlpool".
3. **warranty_period**: the warranty duration exactly as written, for example "24 months" or "1 year".
4. **purchase_date**: the purchase or invoice date in YYYY-MM-DD format.
5. **expiry_date**: the warranty expiry date in YYYY-MM-DD format. Only compute it from purchase_date and warranty_period when BOTH are explicitly printed on the document. Never guess it from typical warranty lengths.
6. **free_service_dates**: a list of free service dates in YYYY-MM-DD format.
7. **helpline_number**: the customer support phone number.
8. **invoice_number**: the invoice or bill number.
9. **service_receipt**: the service receipt number, if any.
10. **category**: the kind of appliance, for example "Refrigerator", "Laptop", "Washing Machine". Infer it from the content when it is not written.

Return ONLY valid JSON in this exact format:
{
  "is_valid_document": true,
  "validation_message": "",
  "device_serial": "",
  "brand_name": "",
  "warranty_period": "",
  "purchase_date": "",
  "expiry_date": "",
  "free_service_dates": [],
  "helpline_number": "",
  "invoice_number": "",
  "service_receipt": "",
  "category": ""
}

Important:
- If you cannot find a field, use an empty string ("") or an empty list ([]); never null and never omit a key
- Dates must be in YYYY-MM-DD format
- Do not include any text before or after the JSON
- Do not use markdown code blocks`
